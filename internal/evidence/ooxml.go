package evidence

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// extractOOXMLText walks the XML parts of an OOXML zip whose names start
// with pathPrefix and collects character data inside elements with the given
// local name ("t" for both WordprocessingML w:t and DrawingML a:t runs).
// Parts are visited in name order so slide text comes out in deck order.
func extractOOXMLText(data []byte, pathPrefix, element string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open ooxml container: %w", err)
	}

	var parts []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, pathPrefix) && strings.HasSuffix(f.Name, ".xml") {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no %s parts in container", pathPrefix)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Name < parts[j].Name })

	var sb strings.Builder
	for _, part := range parts {
		if err := extractPartText(part, element, &sb); err != nil {
			return "", fmt.Errorf("part %s: %w", part.Name, err)
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func extractPartText(part *zip.File, element string, sb *strings.Builder) error {
	rc, err := part.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	depth := 0

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == element {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == element && depth > 0 {
				depth--
			}
			// Paragraph and row boundaries become line breaks.
			if t.Name.Local == "p" || t.Name.Local == "tr" {
				sb.WriteString("\n")
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
				sb.WriteString(" ")
			}
		}
	}
}
