package stream

import (
	"strings"
	"unicode"
)

// Mode is the framing convention detected for a response.
type Mode int

const (
	// ModeUnknown means no non-blank content has been seen yet.
	ModeUnknown Mode = iota
	// ModeEventBlock frames are blank-line separated blocks of "data:" lines.
	ModeEventBlock
	// ModeLineDelimited frames are individual lines.
	ModeLineDelimited
)

func (m Mode) String() string {
	switch m {
	case ModeEventBlock:
		return "event-block"
	case ModeLineDelimited:
		return "line-delimited"
	default:
		return "unknown"
	}
}

const dataPrefix = "data:"

// Decoder splits a byte stream into complete frames. The framing mode is
// detected once and never changes for the lifetime of the Decoder.
//
// The emitted frame sequence does not depend on how the stream is split into
// Feed calls.
type Decoder struct {
	text *textDecoder
	buf  string
	mode Mode
}

// NewDecoder creates a decoder for one response stream.
func NewDecoder() *Decoder {
	return &Decoder{text: newTextDecoder()}
}

// Mode returns the detected framing mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Feed appends a chunk and returns the frames completed by it.
func (d *Decoder) Feed(chunk []byte) []string {
	d.buf += d.text.decode(chunk, false)
	return d.drain(false)
}

// Flush drains whatever is still buffered at end of stream.
func (d *Decoder) Flush() []string {
	d.buf += d.text.decode(nil, true)
	return d.drain(true)
}

func (d *Decoder) drain(final bool) []string {
	if d.mode == ModeUnknown && !d.detect(final) {
		if final {
			d.buf = ""
		}
		return nil
	}

	switch d.mode {
	case ModeEventBlock:
		return d.drainBlocks(final)
	default:
		return d.drainLines(final)
	}
}

// detect picks the framing mode from the first non-blank content. Content
// that could still grow into "data:" defers the decision.
func (d *Decoder) detect(final bool) bool {
	trimmed := strings.TrimLeftFunc(d.buf, unicode.IsSpace)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, dataPrefix) {
		d.mode = ModeEventBlock
		return true
	}
	if !final && strings.HasPrefix(dataPrefix, trimmed) {
		return false
	}
	d.mode = ModeLineDelimited
	return true
}

func (d *Decoder) drainBlocks(final bool) []string {
	d.buf = strings.ReplaceAll(d.buf, "\r\n", "\n")

	var frames []string
	for {
		i := strings.Index(d.buf, "\n\n")
		if i < 0 {
			break
		}
		block := d.buf[:i]
		d.buf = d.buf[i+2:]
		if frame := parseBlock(block); frame != "" {
			frames = append(frames, frame)
		}
	}

	if final {
		if frame := parseBlock(d.buf); frame != "" {
			frames = append(frames, frame)
		}
		d.buf = ""
	}
	return frames
}

// parseBlock extracts the payload of one event block. Only "data:" lines
// contribute; event names, ids and comments are ignored.
func parseBlock(block string) string {
	var data []string
	for _, line := range strings.Split(block, "\n") {
		if rest, ok := strings.CutPrefix(line, dataPrefix); ok {
			data = append(data, rest)
		}
	}
	return strings.TrimSpace(strings.Join(data, "\n"))
}

func (d *Decoder) drainLines(final bool) []string {
	var frames []string
	for {
		i := strings.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(d.buf[:i], "\r")
		d.buf = d.buf[i+1:]
		if frame := strings.TrimSpace(line); frame != "" {
			frames = append(frames, frame)
		}
	}

	if final {
		if frame := strings.TrimSpace(d.buf); frame != "" {
			frames = append(frames, frame)
		}
		d.buf = ""
	}
	return frames
}
