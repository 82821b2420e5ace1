package chat

import (
	"mime"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/opencode-ai/agentchat/internal/logging"
)

// HTMLExtractor converts HTML attachments to markdown. Other content is
// handed to Next.
type HTMLExtractor struct {
	Next Extractor
}

var _ Extractor = HTMLExtractor{}

// DefaultExtractor reads HTML as markdown and text as-is.
func DefaultExtractor() Extractor {
	return HTMLExtractor{Next: PlainTextExtractor{}}
}

// Extract implements Extractor.
func (h HTMLExtractor) Extract(name, contentType string, data []byte) string {
	if !isHTML(name, contentType) {
		if h.Next == nil {
			return ""
		}
		return h.Next.Extract(name, contentType, data)
	}
	if len(data) > maxExtractBytes*4 {
		data = data[:maxExtractBytes*4]
	}

	out, err := convertHTMLToMarkdown(string(data))
	if err != nil {
		logging.Debug().Err(err).Str("attachment", name).Msg("html conversion failed, using text")
		if out, err = extractTextFromHTML(string(data)); err != nil {
			return ""
		}
	}
	out = strings.TrimSpace(out)
	if len(out) > maxExtractBytes {
		out = strings.ToValidUTF8(out[:maxExtractBytes], "")
	}
	return out
}

func isHTML(name, contentType string) bool {
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}

// convertHTMLToMarkdown converts HTML content to Markdown format.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}

// extractTextFromHTML returns the visible text of an HTML document.
func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}
