package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Lllllllleong/documentpreview/internal/format"
)

// Converter rasterizes inputPath into outputPath. It blocks until the work is complete and
// must leave a non-empty file at outputPath on success.
type Converter interface {
	Generate(ctx context.Context, inputPath, outputPath string, opts Options) error
}

// ToolConfig names the external binaries and bounds each run.
type ToolConfig struct {
	ConvertBinary string
	SofficeBinary string
	FFmpegBinary  string
	Timeout       time.Duration
}

// DefaultToolConfig expects ImageMagick 7, LibreOffice and ffmpeg on PATH.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		ConvertBinary: "magick",
		SofficeBinary: "soffice",
		FFmpegBinary:  "ffmpeg",
		Timeout:       60 * time.Second,
	}
}

// runFunc executes one tool and returns its captured stderr.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// maxDiagnostics caps how much tool output is kept on an error.
const maxDiagnostics = 4096

// CommandConverter drives ImageMagick, LibreOffice and ffmpeg as child processes.
type CommandConverter struct {
	tools  ToolConfig
	logger *slog.Logger
	run    runFunc
}

func NewCommandConverter(tools ToolConfig, logger *slog.Logger) *CommandConverter {
	def := DefaultToolConfig()
	if tools.ConvertBinary == "" {
		tools.ConvertBinary = def.ConvertBinary
	}
	if tools.SofficeBinary == "" {
		tools.SofficeBinary = def.SofficeBinary
	}
	if tools.FFmpegBinary == "" {
		tools.FFmpegBinary = def.FFmpegBinary
	}
	if tools.Timeout <= 0 {
		tools.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandConverter{tools: tools, logger: logger, run: runCommand}
}

// Generate picks a route by the input's extension: PDFs are trimmed to their first page,
// office files go through LibreOffice first, videos contribute one frame and images are
// rasterized directly.
func (c *CommandConverter) Generate(ctx context.Context, inputPath, outputPath string, opts Options) error {
	workDir := filepath.Dir(outputPath)
	var (
		source string
		err    error
	)

	switch format.ClassifyExtension(inputPath) {
	case format.InlineDocument:
		source, err = c.pdfFirstPage(inputPath, workDir)
	case format.OfficeDocument:
		var pdfPath string
		pdfPath, err = c.officeToPDF(ctx, inputPath, workDir)
		if err == nil {
			source, err = c.pdfFirstPage(pdfPath, workDir)
		}
	case format.Image:
		source = inputPath + "[0]"
	case format.Video:
		source, err = c.extractFrame(ctx, inputPath, workDir)
	case format.Audio, format.Unsupported:
		if !format.IsText("", inputPath) {
			return newError(KindConversion, "generate", filepath.Base(inputPath),
				fmt.Errorf("unsupported source format %q", filepath.Ext(inputPath)))
		}
		source = "text:" + inputPath + "[0]"
	}
	if err != nil {
		return err
	}

	if err := c.rasterize(ctx, source, outputPath, opts); err != nil {
		return err
	}
	return checkOutput(outputPath)
}

func (c *CommandConverter) rasterize(ctx context.Context, source, outputPath string, opts Options) error {
	stderr, err := c.exec(ctx, c.tools.ConvertBinary, rasterizeArgs(source, outputPath, opts)...)
	if err != nil {
		return conversionError("rasterize", source, err, stderr)
	}
	return nil
}

// rasterizeArgs fits the first page or frame into the box, pads it to the exact box size and
// strips metadata so identical input gives identical bytes.
func rasterizeArgs(source, outputPath string, opts Options) []string {
	size := fmt.Sprintf("%dx%d", opts.Width, opts.Height)
	args := []string{
		"-density", strconv.Itoa(opts.Density),
		source,
		"-background", opts.Background,
		"-alpha", "remove",
		"-alpha", "off",
		"-thumbnail", size,
		"-gravity", "center",
		"-extent", size,
		"-strip",
		"-quality", strconv.Itoa(opts.Quality),
	}
	if strings.EqualFold(filepath.Ext(outputPath), ".png") {
		args = append(args, "-define", "png:exclude-chunks=date,time")
	}
	return append(args, outputPath)
}

// officeToPDF converts with a job-private LibreOffice profile so concurrent jobs do not fight
// over the shared user installation lock.
func (c *CommandConverter) officeToPDF(ctx context.Context, inputPath, workDir string) (string, error) {
	profile := "file://" + filepath.ToSlash(filepath.Join(workDir, "lo-profile"))
	args := []string{
		"-env:UserInstallation=" + profile,
		"--headless", "--norestore", "--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", workDir,
		inputPath,
	}
	stderr, err := c.exec(ctx, c.tools.SofficeBinary, args...)
	if err != nil {
		return "", conversionError("office-to-pdf", filepath.Base(inputPath), err, stderr)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(workDir, base+".pdf")
	if err := checkOutput(pdfPath); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Op = "office-to-pdf"
			perr.Diagnostics = truncate(stderr)
		}
		return "", err
	}
	return pdfPath, nil
}

// extractFrame grabs a frame one second in, falling back to the first frame for short clips.
func (c *CommandConverter) extractFrame(ctx context.Context, inputPath, workDir string) (string, error) {
	framePath := filepath.Join(workDir, "frame.png")
	var lastStderr string
	for _, offset := range []string{"00:00:01", "00:00:00"} {
		args := []string{"-y", "-loglevel", "error", "-ss", offset, "-i", inputPath, "-frames:v", "1", framePath}
		stderr, err := c.exec(ctx, c.tools.FFmpegBinary, args...)
		if err != nil {
			return "", conversionError("extract-frame", filepath.Base(inputPath), err, stderr)
		}
		lastStderr = stderr
		if checkOutput(framePath) == nil {
			return framePath, nil
		}
	}
	perr := newError(KindConversion, "extract-frame", filepath.Base(inputPath), errors.New("no frame could be extracted"))
	perr.Diagnostics = truncate(lastStderr)
	return "", perr
}

func (c *CommandConverter) exec(ctx context.Context, name string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.tools.Timeout)
	defer cancel()

	start := time.Now()
	stderr, err := c.run(runCtx, name, args...)
	c.logger.Debug("External tool finished.", "tool", name, "duration", time.Since(start).String(), "error", err)
	if err != nil && runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = fmt.Errorf("%s timed out after %s: %w", name, c.tools.Timeout, err)
	}
	return stderr, err
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// checkOutput treats a missing or empty output as a failed conversion.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return newError(KindConversion, "generate", filepath.Base(path), fmt.Errorf("tool produced no output: %w", err))
	}
	if info.Size() == 0 {
		return newError(KindConversion, "generate", filepath.Base(path), errors.New("tool produced an empty output"))
	}
	return nil
}

func conversionError(op, key string, err error, stderr string) *Error {
	perr := newError(KindConversion, op, key, err)
	perr.Diagnostics = truncate(stderr)
	return perr
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDiagnostics {
		return s[:maxDiagnostics] + "..."
	}
	return s
}
