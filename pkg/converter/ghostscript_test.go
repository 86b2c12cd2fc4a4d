package converter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable stand-in for gs.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-gs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// copyOutput parses -sOutputFile= and copies the last argument there.
const copyOutput = `for arg in "$@"; do
  case "$arg" in
    -sOutputFile=*) out="${arg#-sOutputFile=}" ;;
  esac
  in="$arg"
done
cp "$in" "$out"
`

func TestArgsAreFixed(t *testing.T) {
	args := Args("/tmp/in.pdf", "/tmp/in-cmyk.pdf")
	assert.Equal(t, []string{
		"-dSAFER",
		"-dBATCH",
		"-dNOPAUSE",
		"-sDEVICE=pdfwrite",
		"-sColorConversionStrategy=CMYK",
		"-dProcessColorModel=/DeviceCMYK",
		"-sOutputFile=/tmp/in-cmyk.pdf",
		"/tmp/in.pdf",
	}, args)
}

func TestConvertSuccess(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "report.pdf")
	out := filepath.Join(dir, "report-cmyk.pdf")
	require.NoError(t, os.WriteFile(in, []byte("%PDF"), 0o644))

	gs := NewGhostscript(writeScript(t, copyOutput), time.Minute, nil)
	require.NoError(t, gs.Convert(context.Background(), in, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestConvertNonZeroExit(t *testing.T) {
	gs := NewGhostscript(writeScript(t, "echo boom >&2\nexit 3\n"), time.Minute, nil)

	err := gs.Convert(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestConvertMissingOutput(t *testing.T) {
	gs := NewGhostscript(writeScript(t, "exit 0\n"), time.Minute, nil)

	err := gs.Convert(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	require.ErrorIs(t, err, ErrConversionFailed)
}

func TestConvertTimeout(t *testing.T) {
	gs := NewGhostscript(writeScript(t, "exec sleep 5\n"), 100*time.Millisecond, nil)

	start := time.Now()
	err := gs.Convert(context.Background(), "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestConvertCallerDeadlineWithoutOwnTimeout(t *testing.T) {
	gs := NewGhostscript(writeScript(t, "exec sleep 5\n"), 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := gs.Convert(ctx, "in.pdf", filepath.Join(t.TempDir(), "out.pdf"))
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, err.Error(), "timed out after")
	assert.NotContains(t, err.Error(), "after 0s")
}

func TestConvertMissingBinary(t *testing.T) {
	gs := NewGhostscript(filepath.Join(t.TempDir(), "no-such-gs"), time.Minute, nil)

	err := gs.Convert(context.Background(), "in.pdf", "out.pdf")
	require.ErrorIs(t, err, ErrConversionFailed)
}

func TestTailString(t *testing.T) {
	assert.Equal(t, "abc", tailString("  abc \n", 10))
	assert.Equal(t, "def", tailString("abcdef", 3))
}
