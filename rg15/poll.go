package rg15

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedPoll is returned by ParsePoll when a line does not follow the
// poll template.
var ErrMalformedPoll = errors.New("rg15: malformed poll response")

// Field labels of the poll line, in wire order.
const (
	LabelAcc      = "Acc"
	LabelEventAcc = "EventAcc"
	LabelTotalAcc = "TotalAcc"
	LabelRInt     = "RInt"
)

// Reading is one parsed poll line.
type Reading struct {
	Acc      float64
	EventAcc float64
	TotalAcc float64
	RInt     float64
	Unit     Unit
}

// ParsePoll parses a response to the read command:
//
//	Acc 1.20 mm, EventAcc 0.00 mm, TotalAcc 5.00 mm, RInt 0.00 mmph
//
// Fields are whitespace separated and may be padded. The unit token after
// the first value sets Reading.Unit; the tokens after EventAcc and TotalAcc
// are skipped, and anything after the RInt value is ignored.
func ParsePoll(line string) (Reading, error) {
	var r Reading
	p := pollParser{tokens: strings.Fields(line)}

	r.Acc = p.field(LabelAcc)
	unit := p.next("unit")
	r.EventAcc = p.field(LabelEventAcc)
	p.next("event unit")
	r.TotalAcc = p.field(LabelTotalAcc)
	p.next("total unit")
	r.RInt = p.field(LabelRInt)

	if p.err != nil {
		return Reading{}, p.err
	}
	r.Unit = unitFromToken(unit)
	return r, nil
}

type pollParser struct {
	tokens []string
	pos    int
	err    error
}

func (p *pollParser) next(what string) string {
	if p.err != nil {
		return ""
	}
	if p.pos >= len(p.tokens) {
		p.err = fmt.Errorf("%w: missing %s", ErrMalformedPoll, what)
		return ""
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok
}

// field consumes a label and its numeric value.
func (p *pollParser) field(label string) float64 {
	if tok := p.next(label); p.err == nil && tok != label {
		p.err = fmt.Errorf("%w: expected %s, got %q", ErrMalformedPoll, label, tok)
	}
	tok := p.next(label + " value")
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(tok, ","), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = fmt.Errorf("%w: %s value %q", ErrMalformedPoll, label, tok)
		return 0
	}
	return v
}
