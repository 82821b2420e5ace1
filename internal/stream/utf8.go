package stream

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// textDecoder turns a byte stream into text, holding back any multi-byte
// sequence that is split across chunk boundaries. Ill-formed input becomes
// U+FFFD and a leading byte order mark is dropped.
type textDecoder struct {
	t       transform.Transformer
	pending []byte
	buf     [4096]byte
}

func newTextDecoder() *textDecoder {
	return &textDecoder{t: unicode.UTF8BOM.NewDecoder()}
}

// decode converts chunk, prefixed by any bytes held back from the previous
// call. With atEOF set, held-back bytes are flushed as replacement runes.
func (d *textDecoder) decode(chunk []byte, atEOF bool) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	var sb strings.Builder
	for {
		nDst, nSrc, err := d.t.Transform(d.buf[:], src, atEOF)
		sb.Write(d.buf[:nDst])
		src = src[nSrc:]

		switch err {
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			d.pending = append([]byte(nil), src...)
		}
		return sb.String()
	}
}
