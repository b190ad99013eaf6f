package fetcher

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

func newXMLDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return decoder
}

// DecodeXML unmarshals a whole document, honoring its declared charset.
func DecodeXML(body []byte, v any) error {
	if err := newXMLDecoder(bytes.NewReader(body)).Decode(v); err != nil {
		return eris.Wrap(err, "xml: decode")
	}
	return nil
}

// ValidXML walks every token of body in strict mode and reports the first
// syntax error. An empty document or one whose root is never closed is
// invalid.
func ValidXML(body []byte) error {
	decoder := newXMLDecoder(bytes.NewReader(body))
	depth, roots := 0, 0
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrap(err, "xml: read token")
		}
		switch tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if roots == 0 {
		return eris.New("xml: no root element")
	}
	if depth != 0 {
		return eris.New("xml: unclosed element")
	}
	return nil
}
