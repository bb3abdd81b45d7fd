package rg15

import "fmt"

// BaudRates is indexed by baud code, the value sent with the baud change
// command.
var BaudRates = [...]int{1200, 2400, 4800, 9600, 19200, 38400, 57600}

// DefaultBaudRate is the rate the sensor ships with.
const DefaultBaudRate = 9600

// BaudCode returns the code for rate, or false when the sensor does not
// support it.
func BaudCode(rate int) (int, bool) {
	for code, r := range BaudRates {
		if r == rate {
			return code, true
		}
	}
	return -1, false
}

// BaudRate returns the rate for code, or false when the code is out of range.
func BaudRate(code int) (int, bool) {
	if code < 0 || code >= len(BaudRates) {
		return 0, false
	}
	return BaudRates[code], true
}

// BaudCommand is the command text that switches the sensor to the rate
// identified by code.
func BaudCommand(code int) string {
	return fmt.Sprintf("%s %d", CmdBaud, code)
}

// BaudAck is the exact line the sensor answers a baud change with.
func BaudAck(rate int) string {
	return fmt.Sprintf("%s %d", AckBaud, rate)
}
