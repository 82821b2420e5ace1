package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(chunks ...string) ([]string, Mode) {
	d := NewDecoder()
	var frames []string
	for _, c := range chunks {
		frames = append(frames, d.Feed([]byte(c))...)
	}
	frames = append(frames, d.Flush()...)
	return frames, d.Mode()
}

func TestDecoder_EventBlock(t *testing.T) {
	input := "data: {\"type\":\"item\",\"content\":\"Hel\"}\n\ndata: {\"type\":\"item\",\"content\":\"lo\"}\n\n"

	frames, mode := decodeAll(input)

	assert.Equal(t, ModeEventBlock, mode)
	assert.Equal(t, []string{
		`{"type":"item","content":"Hel"}`,
		`{"type":"item","content":"lo"}`,
	}, frames)
}

func TestDecoder_EventBlockMultiLineData(t *testing.T) {
	input := "data: {\"a\":\ndata: 1}\nevent: message\nid: 7\n\n: keepalive\n\n"

	frames, _ := decodeAll(input)

	assert.Equal(t, []string{"{\"a\":\n 1}"}, frames)
}

func TestDecoder_EventBlockCRLF(t *testing.T) {
	frames, mode := decodeAll("data: one\r\n\r\ndata: two\r\n\r\n")

	assert.Equal(t, ModeEventBlock, mode)
	assert.Equal(t, []string{"one", "two"}, frames)
}

func TestDecoder_EventBlockEmptyDiscarded(t *testing.T) {
	frames, _ := decodeAll("data: first\n\ndata:   \n\n\n\ndata: last\n\n")

	assert.Equal(t, []string{"first", "last"}, frames)
}

func TestDecoder_EventBlockTrailingBlockOnFlush(t *testing.T) {
	d := NewDecoder()

	assert.Empty(t, d.Feed([]byte("data: tail")))
	assert.Equal(t, []string{"tail"}, d.Flush())
}

func TestDecoder_LineDelimited(t *testing.T) {
	input := "{\"type\":\"item\",\"content\":\"A\"}\n{\"type\":\"item\",\"content\":\"B\"}\n{\"type\":\"end\",\"title\":\"Greeting\"}\n"

	frames, mode := decodeAll(input)

	assert.Equal(t, ModeLineDelimited, mode)
	require.Len(t, frames, 3)
	assert.Equal(t, `{"type":"end","title":"Greeting"}`, frames[2])
}

func TestDecoder_LineDelimitedKeepsPartialLine(t *testing.T) {
	d := NewDecoder()

	assert.Equal(t, []string{"one"}, d.Feed([]byte("one\r\ntw")))
	assert.Empty(t, d.Feed([]byte("o")))
	assert.Equal(t, []string{"two"}, d.Feed([]byte("\n\n\n")))
	assert.Empty(t, d.Flush())
}

func TestDecoder_LineDelimitedFlushesLastLine(t *testing.T) {
	frames, _ := decodeAll("a\nb")

	assert.Equal(t, []string{"a", "b"}, frames)
}

func TestDecoder_DetectionIgnoresLeadingWhitespace(t *testing.T) {
	frames, mode := decodeAll("\n\n   data: x\n\n")

	assert.Equal(t, ModeEventBlock, mode)
	assert.Equal(t, []string{"x"}, frames)
}

func TestDecoder_DetectionWaitsForAmbiguousPrefix(t *testing.T) {
	d := NewDecoder()

	assert.Empty(t, d.Feed([]byte("da")))
	assert.Equal(t, ModeUnknown, d.Mode())

	d.Feed([]byte("ta: x\n\n"))
	assert.Equal(t, ModeEventBlock, d.Mode())
}

func TestDecoder_DetectionHappensOnce(t *testing.T) {
	d := NewDecoder()

	d.Feed([]byte("{\"x\":1}\n"))
	require.Equal(t, ModeLineDelimited, d.Mode())

	frames := d.Feed([]byte("data: y\n"))
	assert.Equal(t, ModeLineDelimited, d.Mode())
	assert.Equal(t, []string{"data: y"}, frames)
}

func TestDecoder_EmptyStream(t *testing.T) {
	frames, mode := decodeAll("", "  \n ")

	assert.Empty(t, frames)
	assert.Equal(t, ModeUnknown, mode)
}

func TestDecoder_MultiByteSplitAcrossChunks(t *testing.T) {
	raw := []byte("data: héllo 世界\n\n")

	d := NewDecoder()
	var frames []string
	for i := range raw {
		frames = append(frames, d.Feed(raw[i:i+1])...)
	}
	frames = append(frames, d.Flush()...)

	assert.Equal(t, []string{"héllo 世界"}, frames)
}

func TestDecoder_InvalidUTF8Replaced(t *testing.T) {
	frames, _ := decodeAll("a\xffb\n")

	assert.Equal(t, []string{"a�b"}, frames)
}

func TestDecoder_TruncatedRuneFlushedAsReplacement(t *testing.T) {
	d := NewDecoder()
	raw := []byte("ok 世")

	assert.Empty(t, d.Feed(raw[:len(raw)-1]))
	assert.Equal(t, []string{"ok �"}, d.Flush())
}

func TestDecoder_ByteOrderMarkDropped(t *testing.T) {
	frames, mode := decodeAll("\xef\xbb\xbfdata: x\n\n")

	assert.Equal(t, ModeEventBlock, mode)
	assert.Equal(t, []string{"x"}, frames)
}

// Splitting the same stream at any boundary must yield the same frames.
func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	inputs := []string{
		"data: {\"type\":\"item\",\"content\":\"Hel\"}\n\ndata: {\"type\":\"item\",\"content\":\"lo\"}\n\n",
		"data: a\r\n\r\ndata: b\r\n\r\ndata: c",
		"event: x\ndata: 1\ndata: 2\n\n\n\ndata: 3\n\n",
		"{\"type\":\"item\",\"content\":\"A\"}\r\n{\"type\":\"item\",\"content\":\"B\"}\n\n{\"type\":\"end\"}",
		"  \n d\nata: not-sse\n",
		"data: ünïcödé 🙂\n\ndata: ✓\n\n",
	}

	for _, input := range inputs {
		want, wantMode := decodeAll(input)

		for i := 0; i <= len(input); i++ {
			got, gotMode := decodeAll(input[:i], input[i:])
			assert.Equal(t, want, got, "split at %d of %q", i, input)
			assert.Equal(t, wantMode, gotMode, "split at %d of %q", i, input)
		}

		for i := 1; i < len(input); i++ {
			for j := i; j <= len(input); j++ {
				got, _ := decodeAll(input[:i], input[i:j], input[j:])
				assert.Equal(t, want, got, "split at %d,%d of %q", i, j, input)
			}
		}

		bytewise := make([]string, 0, len(input))
		for i := 0; i < len(input); i++ {
			bytewise = append(bytewise, input[i:i+1])
		}
		got, _ := decodeAll(bytewise...)
		assert.Equal(t, want, got, "byte-at-a-time %q", input)
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "event-block", ModeEventBlock.String())
	assert.Equal(t, "line-delimited", ModeLineDelimited.String())
	assert.Equal(t, "unknown", ModeUnknown.String())
}
