package stream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_EventBlockHello(t *testing.T) {
	var progress []string
	p := NewPipeline(func(text string) { progress = append(progress, text) })

	_, err := p.Write([]byte("data: {\"type\":\"item\",\"content\":\"Hel\"}\n\ndata: {\"type\":\"item\",\"content\":\"lo\"}\n\n"))
	require.NoError(t, err)
	text, title := p.Close()

	assert.Equal(t, "Hello", text)
	assert.Nil(t, title)
	assert.Equal(t, []string{"Hel", "Hello"}, progress)
	assert.Equal(t, ModeEventBlock, p.Mode())
}

func TestPipeline_LineDelimitedWithTitle(t *testing.T) {
	p := NewPipeline(nil)

	body := "{\"type\":\"item\",\"content\":\"A\"}\n{\"type\":\"item\",\"content\":\"B\"}\n{\"type\":\"end\",\"title\":\"Greeting\"}\n"
	_, err := io.Copy(p, strings.NewReader(body))
	require.NoError(t, err)

	text, title := p.Close()
	assert.Equal(t, "AB", text)
	require.NotNil(t, title)
	assert.Equal(t, "Greeting", *title)
	assert.True(t, p.Ended())
}

func TestPipeline_SkipsMalformedFrames(t *testing.T) {
	p := NewPipeline(nil)

	p.Write([]byte("{\"type\":\"item\",\"content\":\"x\"}\n{broken\n{\"type\":\"ping\"}\n{\"type\":\"item\",\"content\":\"y\"}"))
	text, _ := p.Close()

	assert.Equal(t, "xy", text)
	frames, skipped := p.Stats()
	assert.Equal(t, 4, frames)
	assert.Equal(t, 2, skipped)
}

func TestPipeline_NoDeltasGivesFallback(t *testing.T) {
	p := NewPipeline(nil)

	p.Write([]byte("data: {\"type\":\"end\"}\n\n"))
	text, _ := p.Close()

	assert.Equal(t, FallbackText, text)
}
