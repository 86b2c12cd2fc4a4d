// Package converter runs the external PDF color conversion.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrConversionFailed marks any failed, timed out or output-less invocation.
var ErrConversionFailed = errors.New("conversion failed")

const stderrTailBytes = 2048

// Converter turns the file at inputPath into outputPath.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Ghostscript invokes gs with a fixed argument set that forces a full CMYK
// conversion in safe mode.
type Ghostscript struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewGhostscript builds a converter. A zero timeout disables the limit.
func NewGhostscript(binary string, timeout time.Duration, logger *zap.Logger) *Ghostscript {
	if binary == "" {
		binary = "gs"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ghostscript{
		binary:  binary,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("github.com/your-org/cmykrelay/pkg/converter"),
	}
}

// Args returns the argument list passed to the binary.
func Args(inputPath, outputPath string) []string {
	return []string{
		"-dSAFER",
		"-dBATCH",
		"-dNOPAUSE",
		"-sDEVICE=pdfwrite",
		"-sColorConversionStrategy=CMYK",
		"-dProcessColorModel=/DeviceCMYK",
		"-sOutputFile=" + outputPath,
		inputPath,
	}
}

func (g *Ghostscript) Convert(ctx context.Context, inputPath, outputPath string) error {
	ctx, span := g.tracer.Start(ctx, "converter.ghostscript",
		trace.WithAttributes(attribute.String("input", inputPath)))
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, Args(inputPath, outputPath)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	deadline, hasDeadline := ctx.Deadline()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		span.RecordError(runErr)
		tail := tailString(stderr.String(), stderrTailBytes)
		g.logger.Error("ghostscript failed",
			zap.String("input", inputPath),
			zap.Duration("elapsed", elapsed),
			zap.String("stderr", tail),
			zap.Error(runErr),
		)
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			if hasDeadline {
				budget := deadline.Sub(start).Round(time.Millisecond)
				return fmt.Errorf("%w: timed out after %s", ErrConversionFailed, budget)
			}
			return fmt.Errorf("%w: %v", ErrConversionFailed, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Errorf("%w: exit code %d", ErrConversionFailed, exitErr.ExitCode())
		}
		return fmt.Errorf("%w: %v", ErrConversionFailed, runErr)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("%w: output missing: %v", ErrConversionFailed, err)
	}

	g.logger.Debug("ghostscript finished",
		zap.String("input", inputPath),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

func tailString(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
