// Package normalize converts an accepted upload into an ordered sequence
// of page images for extraction. PDF rasterization shells out to poppler's
// pdftoppm; single-image uploads pass through untouched.
package normalize

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"coverly/internal/domain"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// RasterDPI is the fixed resolution PDF pages are rendered at. 144 DPI
// (2x the PDF point grid) keeps small-print limit tables legible to the
// extractor without ballooning the payload. Not caller-controllable.
const RasterDPI = 144

// RasterScale is the upscaling factor RasterDPI implies.
const RasterScale = float64(RasterDPI) / 72.0

type typedError struct {
	kind string
	msg  string
}

func (e *typedError) Error() string { return e.msg }

// Is matches on kind so wrapped variants (e.g. a raster failure carrying
// tool output) still compare equal to their sentinel.
func (e *typedError) Is(target error) bool {
	t, ok := target.(*typedError)
	return ok && t.kind == e.kind
}

var (
	// ErrUnsupportedFormat rejects MIME types outside the accepted set.
	ErrUnsupportedFormat = &typedError{kind: "unsupported_format", msg: "unsupported document format"}
	// ErrTooLarge rejects uploads over the configured ceiling.
	ErrTooLarge = &typedError{kind: "too_large", msg: "document exceeds size limit"}
	// ErrCorrupt rejects inputs that do not decode as their declared type.
	ErrCorrupt = &typedError{kind: "corrupt", msg: "document could not be decoded"}
)

// CommandRunner executes an external command. A seam for tests; the real
// one wraps exec.CommandContext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Normalizer validates and rasterizes uploads. Construct one per upload
// ceiling (the public and vendor paths have independent limits).
type Normalizer struct {
	runner   CommandRunner
	maxBytes int64
}

func New(runner CommandRunner, maxBytes int64) *Normalizer {
	return &Normalizer{runner: runner, maxBytes: maxBytes}
}

// Normalize is pure with respect to its input: identical bytes always
// yield the same ordered page sequence.
func (n *Normalizer) Normalize(ctx context.Context, source []byte, mimeType string) ([]domain.PageImage, error) {
	if int64(len(source)) > n.maxBytes {
		return nil, ErrTooLarge
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return nil, ErrUnsupportedFormat
	}
	switch mt {
	case MIMEPDF:
		return n.rasterize(ctx, source)
	case MIMEPNG:
		if _, err := png.DecodeConfig(bytes.NewReader(source)); err != nil {
			return nil, ErrCorrupt
		}
		return []domain.PageImage{{Index: 0, Data: source, Format: "png", Scale: 1.0}}, nil
	case MIMEJPEG:
		if _, err := jpeg.DecodeConfig(bytes.NewReader(source)); err != nil {
			return nil, ErrCorrupt
		}
		return []domain.PageImage{{Index: 0, Data: source, Format: "jpeg", Scale: 1.0}}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// rasterBudget bounds one pdftoppm run; a wedged render must not hold a
// request slot indefinitely.
const rasterBudget = 30 * time.Second

// rasterize renders each PDF page to PNG at RasterDPI via pdftoppm, which
// writes one numbered file per page next to the given prefix.
func (n *Normalizer) rasterize(ctx context.Context, source []byte) ([]domain.PageImage, error) {
	ctx, cancel := context.WithTimeout(ctx, rasterBudget)
	defer cancel()

	dir, err := os.MkdirTemp("", "coverly-raster-*")
	if err != nil {
		return nil, fmt.Errorf("raster workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, source, 0o600); err != nil {
		return nil, fmt.Errorf("raster workspace: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	if _, err := n.runner.Run(ctx, "pdftoppm", "-png", "-r", fmt.Sprint(RasterDPI), in, prefix); err != nil {
		return nil, &typedError{kind: "corrupt", msg: fmt.Sprintf("pdf raster failed: %v", err)}
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(matches) == 0 {
		return nil, ErrCorrupt
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(matches)

	pages := make([]domain.PageImage, 0, len(matches))
	for i, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("raster read: %w", err)
		}
		pages = append(pages, domain.PageImage{Index: i, Data: data, Format: "png", Scale: RasterScale})
	}
	return pages, nil
}

// Accepted reports whether a MIME type is in the accepted set.
func Accepted(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mt) {
	case MIMEPDF, MIMEPNG, MIMEJPEG:
		return true
	}
	return false
}
