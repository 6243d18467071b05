package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	dcconfig "github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
	"github.com/JaimeStill/document-context/pkg/image"

	"github.com/JaimeStill/go-agents/pkg/agent"
)

const ocrPrompt = "Extract every piece of readable text from this page verbatim. " +
	"Preserve reading order. Return plain text only, no commentary. " +
	"If the page contains no readable text, return an empty response."

// ocrPDF renders each PDF page to PNG and runs vision extraction per page
// with bounded concurrency, returning pages joined in order.
func (n *normalizer) ocrPDF(ctx context.Context, data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "dealdesk-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write temp pdf: %w", err)
	}

	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer pdfDoc.Close()

	renderer, err := image.NewImageMagickRenderer(dcconfig.DefaultImageConfig())
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}

	pages, err := pdfDoc.ExtractAllPages()
	if err != nil {
		return "", fmt.Errorf("extract pages: %w", err)
	}

	type pageText struct {
		number int
		text   string
	}

	var mu sync.Mutex
	results := make([]pageText, 0, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(runtime.NumCPU(), len(pages)), 1))

	for i, page := range pages {
		pageNum := i + 1
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			data, err := page.ToImage(renderer, nil)
			if err != nil {
				return fmt.Errorf("render page %d: %w", pageNum, err)
			}

			dataURI, err := encoding.EncodeImageDataURI(data, document.PNG)
			if err != nil {
				return fmt.Errorf("encode page %d: %w", pageNum, err)
			}

			text, err := n.vision(gctx, dataURI)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNum, err)
			}

			mu.Lock()
			results = append(results, pageText{number: pageNum, text: text})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].number < results[j].number })

	var sb strings.Builder
	for _, r := range results {
		if strings.TrimSpace(r.text) == "" {
			continue
		}
		fmt.Fprintf(&sb, "[Page %d]\n%s\n\n", r.number, r.text)
	}

	return sb.String(), nil
}

func (n *normalizer) ocrImage(ctx context.Context, data []byte, ext string) (string, error) {
	format := document.PNG
	if normalizeExt(ext) != "png" {
		format = document.JPEG
	}

	dataURI, err := encoding.EncodeImageDataURI(data, format)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	return n.vision(ctx, dataURI)
}

func (n *normalizer) vision(ctx context.Context, dataURI string) (string, error) {
	a, err := agent.New(&n.agent)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Vision(ctx, ocrPrompt, []string{dataURI})
	if err != nil {
		return "", fmt.Errorf("vision call: %w", err)
	}

	return resp.Content(), nil
}
