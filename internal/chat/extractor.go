package chat

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Attachment is a file the user sends along with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Extractor turns attachment bytes into text. It returns "" for content it
// cannot read and never fails.
type Extractor interface {
	Extract(name, contentType string, data []byte) string
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(name, contentType string, data []byte) string

func (f ExtractorFunc) Extract(name, contentType string, data []byte) string {
	return f(name, contentType, data)
}

// maxExtractBytes bounds the text taken from one attachment.
const maxExtractBytes = 64 << 10

// PlainTextExtractor passes text and JSON content through unchanged.
type PlainTextExtractor struct{}

var _ Extractor = PlainTextExtractor{}

// Extract implements Extractor.
func (PlainTextExtractor) Extract(name, contentType string, data []byte) string {
	if !isTextual(name, contentType) {
		return ""
	}
	if len(data) > maxExtractBytes {
		data = data[:maxExtractBytes]
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return strings.TrimSpace(text)
}

func isTextual(name, contentType string) bool {
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".json", ".log":
		return true
	}
	return false
}

// composeInput appends the text of each attachment to the user's input.
func composeInput(input string, attachments []Attachment, ex Extractor) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(input))
	for _, a := range attachments {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		text := ex.Extract(a.Name, a.ContentType, a.Data)
		if text == "" {
			sb.WriteString("[Attachment: " + a.Name + " (no text extracted)]")
			continue
		}
		sb.WriteString("[Attachment: " + a.Name + "]\n")
		sb.WriteString(text)
	}
	return sb.String()
}
