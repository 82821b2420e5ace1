package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainTextExtractor(t *testing.T) {
	ex := PlainTextExtractor{}

	tests := []struct {
		name        string
		file        string
		contentType string
		data        string
		want        string
	}{
		{"plain text", "a.txt", "text/plain; charset=utf-8", " hello \n", "hello"},
		{"csv is text", "a.csv", "text/csv", "a,b", "a,b"},
		{"json", "a.json", "application/json", `{"k":1}`, `{"k":1}`},
		{"vendor json", "a", "application/vnd.api+json", `[]`, `[]`},
		{"type from extension", "notes.md", "", "# title", "# title"},
		{"pdf unsupported", "a.pdf", "application/pdf", "%PDF-1.7", ""},
		{"binary unsupported", "a.bin", "application/octet-stream", "\x00\x01", ""},
		{"invalid utf8 repaired", "a.txt", "text/plain", "ok\xffok", "ok�ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.file, tt.contentType, []byte(tt.data)))
		})
	}
}

func TestPlainTextExtractor_Truncates(t *testing.T) {
	data := make([]byte, maxExtractBytes+100)
	for i := range data {
		data[i] = 'x'
	}
	got := PlainTextExtractor{}.Extract("big.txt", "text/plain", data)
	assert.Len(t, got, maxExtractBytes)
}

func TestComposeInput(t *testing.T) {
	ex := ExtractorFunc(func(name, contentType string, data []byte) string {
		if name == "empty.bin" {
			return ""
		}
		return string(data)
	})

	assert.Equal(t, "hi", composeInput(" hi ", nil, ex))
	assert.Equal(t,
		"hi\n\n[Attachment: a.txt]\nbody\n\n[Attachment: empty.bin (no text extracted)]",
		composeInput("hi", []Attachment{
			{Name: "a.txt", Data: []byte("body")},
			{Name: "empty.bin"},
		}, ex),
	)
	assert.Equal(t, "[Attachment: a.txt]\nbody",
		composeInput("", []Attachment{{Name: "a.txt", Data: []byte("body")}}, ex))
}
