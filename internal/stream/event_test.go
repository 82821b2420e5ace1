package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret(t *testing.T) {
	title := "Greeting"

	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{"item", `{"type":"item","content":"Hel"}`, ContentDelta{Content: "Hel"}},
		{"empty item", `{"type":"item","content":""}`, ContentDelta{Content: ""}},
		{"end with title", `{"type":"end","title":"Greeting"}`, StreamEnd{Title: &title}},
		{"end without title", `{"type":"end"}`, StreamEnd{}},
		{"end with null title", `{"type":"end","title":null}`, StreamEnd{}},
		{"end with non-string title", `{"type":"end","title":42}`, StreamEnd{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpret(tt.frame))
		})
	}
}

func TestInterpret_Unrecognized(t *testing.T) {
	frames := []string{
		"",
		"[DONE]",
		"not json",
		`{"type":"item"}`,
		`{"type":"item","content":7}`,
		`{"type":"begin","content":"x"}`,
		`{"content":"x"}`,
		`["item"]`,
		`{"type":5}`,
	}

	for _, frame := range frames {
		ev := Interpret(frame)
		_, ok := ev.(Unrecognized)
		require.True(t, ok, "frame %q gave %#v", frame, ev)
	}
}
