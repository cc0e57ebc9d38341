package pipeline

import (
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfFirstPage writes a single-page copy of the PDF so the rasterizer never parses more than it
// renders. pdfcpu is stricter than Ghostscript: when it rejects the file the original is handed
// to the rasterizer as is, and only that tool's verdict counts.
func (c *CommandConverter) pdfFirstPage(inputPath, workDir string) (string, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(inputPath, conf); err != nil {
		c.logger.Warn("PDF failed validation, rasterizing original.", "path", inputPath, "error", err)
		return inputPath + "[0]", nil
	}
	pageCount, err := api.PageCountFile(inputPath)
	if err != nil {
		c.logger.Warn("Could not count PDF pages, rasterizing original.", "path", inputPath, "error", err)
		return inputPath + "[0]", nil
	}

	firstPage := filepath.Join(workDir, "first-page.pdf")
	if err := api.TrimFile(inputPath, firstPage, []string{"1"}, conf); err != nil {
		c.logger.Warn("Could not trim PDF, rasterizing original.", "path", inputPath, "error", err)
		return inputPath + "[0]", nil
	}
	c.logger.Debug("PDF trimmed to first page.", "path", inputPath, "pageCount", pageCount)
	return firstPage + "[0]", nil
}
