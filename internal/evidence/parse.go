// Package evidence implements the evidence normalizer: it converts uploaded
// binary documents (PDF, DOCX, PPTX, XLSX, CSV, images, plain text) into
// extracted plain text plus a uniform "is this readable" signal consumed by
// the scoring pipeline.
package evidence

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// maxExtractedChars bounds extracted text so a pathological spreadsheet
// cannot blow up record blobs or prompt contexts.
const maxExtractedChars = 100_000

// minPDFYield is the threshold below which a parsed PDF is considered
// image-only and routed to the OCR fallback.
const minPDFYield = 50

func (n *normalizer) Parse(ctx context.Context, data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return SentinelEmptyFile, nil
	}

	switch normalizeExt(ext) {
	case "pdf":
		return n.parsePDF(ctx, data), nil
	case "docx":
		return n.parseOOXML(data, "word/document.xml", "t"), nil
	case "pptx":
		return n.parseOOXML(data, "ppt/slides/", "t"), nil
	case "xlsx":
		return n.parseXLSX(data), nil
	case "csv":
		return n.parseCSV(data), nil
	case "txt", "md":
		return clamp(string(data)), nil
	case "png", "jpg", "jpeg":
		return n.parseImage(ctx, data, ext), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func (n *normalizer) parsePDF(ctx context.Context, data []byte) string {
	text, err := extractPDFText(data)
	if err == nil && len(strings.TrimSpace(text)) >= minPDFYield {
		return clamp(text)
	}

	if err != nil {
		n.logger.Warn("pdf text extraction failed, trying OCR", "error", err)
	} else {
		n.logger.Info("pdf yielded minimal text, trying OCR", "chars", len(text))
	}

	if n.ocr {
		ocrText, ocrErr := n.ocrPDF(ctx, data)
		if ocrErr == nil && len(strings.TrimSpace(ocrText)) >= minPDFYield {
			return clamp(ocrText)
		}
		if ocrErr != nil {
			n.logger.Warn("pdf OCR fallback failed", "error", ocrErr)
		}
	}

	if err == nil {
		return SentinelMinimalText + "; OCR produced no additional content]"
	}
	return SentinelUnreadable
}

func extractPDFText(data []byte) (text string, err error) {
	// The pdf package panics on some malformed files; recover so the
	// normalizer keeps its never-throws contract for expected formats.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return sb.String(), nil
}

// parseOOXML extracts text runs from an OOXML container (DOCX, PPTX). Both
// formats are zips of XML parts where visible text lives in <w:t> / <a:t>
// elements; pathPrefix selects the parts and element the run tag.
func (n *normalizer) parseOOXML(data []byte, pathPrefix, element string) string {
	text, err := extractOOXMLText(data, pathPrefix, element)
	if err != nil {
		n.logger.Warn("ooxml extraction failed", "part", pathPrefix, "error", err)
		return SentinelUnreadable
	}
	if strings.TrimSpace(text) == "" {
		return SentinelUnreadable
	}
	return clamp(text)
}

func (n *normalizer) parseXLSX(data []byte) string {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("xlsx open failed", "error", err)
		return SentinelUnreadable
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		sb.WriteString(sheet)
		sb.WriteString("\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return SentinelUnreadable
	}
	return clamp(sb.String())
}

func (n *normalizer) parseCSV(data []byte) string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			n.logger.Warn("csv parse failed", "error", err)
			return SentinelUnreadable
		}
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return SentinelEmptyFile
	}
	return clamp(sb.String())
}

func (n *normalizer) parseImage(ctx context.Context, data []byte, ext string) string {
	if !n.ocr {
		return SentinelImageNoOCR + "; no vision model configured]"
	}

	text, err := n.ocrImage(ctx, data, ext)
	if err != nil {
		n.logger.Warn("image OCR failed", "error", err)
		return SentinelImageNoOCR + "]"
	}
	if strings.TrimSpace(text) == "" {
		return SentinelImageNoOCR + "]"
	}
	return clamp(text)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

func clamp(text string) string {
	if len(text) > maxExtractedChars {
		return text[:maxExtractedChars]
	}
	return text
}
