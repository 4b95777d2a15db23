package anidb

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html/charset"

	"github.com/varoOP/anidbkit/internal/domain"
)

// decodeDocument decodes the root element of body into v. An <error> root is returned as a
// *domain.RemoteApplicationError, anything unparseable as domain.ErrMalformedDocument.
func decodeDocument(body string, v any) error {
	d := xml.NewDecoder(strings.NewReader(body))
	d.CharsetReader = charset.NewReaderLabel

	se, err := rootElement(d)
	if err != nil {
		return errors.Wrapf(domain.ErrMalformedDocument, "%v", err)
	}

	if se.Name.Local == "error" {
		var e errorDocument
		if err := d.DecodeElement(&e, &se); err != nil {
			return errors.Wrapf(domain.ErrMalformedDocument, "error document: %v", err)
		}
		return &domain.RemoteApplicationError{Code: e.Code, Message: strings.TrimSpace(e.Message)}
	}

	if err := d.DecodeElement(v, &se); err != nil {
		return errors.Wrapf(domain.ErrMalformedDocument, "%v", err)
	}

	return nil
}

func isErrorDocument(body string) bool {
	d := xml.NewDecoder(strings.NewReader(body))
	d.CharsetReader = charset.NewReaderLabel

	se, err := rootElement(d)
	return err == nil && se.Name.Local == "error"
}

func rootElement(d *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return xml.StartElement{}, errors.New("empty document")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}
