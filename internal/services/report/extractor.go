package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Extractor pulls text out of uploaded resume PDFs using pdfcpu.
// pdfcpu extracts page content streams rather than laid-out text, which
// is good enough as embedding input for profile matching.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

var _ interfaces.PDFExtractor = (*Extractor)(nil)

func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "jobhound-pdf")
	os.MkdirAll(tempDir, 0755)
	return &Extractor{logger: logger, tempDir: tempDir}
}

// ExtractText returns the whole document's text with page markers
// between pages.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	pages, err := e.ExtractPages(ctx, path)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i, page := range pages {
		if i > 0 {
			builder.WriteString(fmt.Sprintf("\n\n--- Page %d ---\n\n", page.PageNumber))
		}
		builder.WriteString(page.Text)
	}
	return builder.String(), nil
}

// ExtractPages returns per-page text for the PDF at path.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]interfaces.PDFPageContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, models.Errorf(models.ErrParse, "failed to read PDF %s: %v", filepath.Base(path), err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.tempDir, "pages_")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		// Scanned or image-only PDFs have no content streams to extract
		e.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("PDF content extraction failed")
		pages := make([]interfaces.PDFPageContent, 0, pageCount)
		for pageNum := 1; pageNum <= pageCount; pageNum++ {
			pages = append(pages, interfaces.PDFPageContent{PageNumber: pageNum})
		}
		return pages, nil
	}

	pageTexts := readPageFiles(outDir)

	pages := make([]interfaces.PDFPageContent, 0, pageCount)
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pages = append(pages, interfaces.PDFPageContent{
			PageNumber: pageNum,
			Text:       pageTexts[pageNum],
		})
	}

	e.logger.Debug().
		Str("file", filepath.Base(path)).
		Int("pages", pageCount).
		Msg("Extracted PDF text")
	return pages, nil
}

// readPageFiles maps extracted content files back to their page numbers.
// pdfcpu names them page_N or Content_page_N depending on version.
func readPageFiles(dir string) map[int]string {
	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(dir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
			continue
		}
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}
	return pageTexts
}
