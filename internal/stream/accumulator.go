package stream

import "strings"

// FallbackText replaces the reply when a response carried no content at all.
const FallbackText = "No valid response received, please retry."

// Accumulator rebuilds one assistant reply from its content deltas.
//
// The first delta replaces the accumulated text instead of being appended to
// it, because some backends open with an already complete context block.
type Accumulator struct {
	received bool
	text     strings.Builder
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// OnDelta folds one delta in and returns the text accumulated so far.
func (a *Accumulator) OnDelta(content string) string {
	if !a.received {
		a.received = true
		a.text.Reset()
	}
	a.text.WriteString(content)
	return a.text.String()
}

// Text returns the text accumulated so far.
func (a *Accumulator) Text() string {
	return a.text.String()
}

// HasReceivedFirstDelta reports whether any delta has arrived.
func (a *Accumulator) HasReceivedFirstDelta() bool {
	return a.received
}

// Finalize returns the completed reply, or FallbackText if nothing arrived.
func (a *Accumulator) Finalize() string {
	if !a.received {
		return FallbackText
	}
	return a.text.String()
}

// Reset prepares the accumulator for another response.
func (a *Accumulator) Reset() {
	a.received = false
	a.text.Reset()
}
