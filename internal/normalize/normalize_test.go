package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

// fakeRaster pretends to be pdftoppm: it writes one PNG per configured
// page next to the output prefix passed in the final argument.
type fakeRaster struct {
	pages int
	err   error
	calls int
}

func (f *fakeRaster) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		if err := os.WriteFile(fmt.Sprintf("%s-%02d.png", prefix, i), []byte(fmt.Sprintf("png-page-%d", i)), 0o600); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestNormalizeSingleImage(t *testing.T) {
	n := New(&fakeRaster{}, 1<<20)

	for _, tc := range []struct {
		name   string
		mime   string
		format string
		data   []byte
	}{
		{"png", "image/png", "png", pngBytes(t)},
		{"jpeg", "image/jpeg", "jpeg", jpegBytes(t)},
		{"mime with parameters", "image/png; charset=binary", "png", pngBytes(t)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			pages, err := n.Normalize(context.Background(), tc.data, tc.mime)
			require.NoError(t, err)
			require.Len(t, pages, 1)
			assert.Equal(t, 0, pages[0].Index)
			assert.Equal(t, 1.0, pages[0].Scale)
			assert.Equal(t, tc.data, pages[0].Data, "single images pass through untouched")
			assert.Equal(t, tc.format, pages[0].Format, "format tag matches the source encoding")
		})
	}
}

func TestNormalizePDF(t *testing.T) {
	n := New(&fakeRaster{pages: 3}, 1<<20)

	pages, err := n.Normalize(context.Background(), []byte("%PDF-1.7 stub"), "application/pdf")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, RasterScale, p.Scale)
		assert.Equal(t, []byte(fmt.Sprintf("png-page-%d", i+1)), p.Data, "document page order preserved")
		assert.Equal(t, "png", p.Format)
	}
}

func TestNormalizeDeterminism(t *testing.T) {
	n := New(&fakeRaster{pages: 2}, 1<<20)
	src := []byte("%PDF-1.7 stub")

	first, err := n.Normalize(context.Background(), src, "application/pdf")
	require.NoError(t, err)
	second, err := n.Normalize(context.Background(), src, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalizeRejections(t *testing.T) {
	n := New(&fakeRaster{}, 64)

	_, err := n.Normalize(context.Background(), []byte("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = n.Normalize(context.Background(), []byte("x"), "not a mime type at all//")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = n.Normalize(context.Background(), bytes.Repeat([]byte("a"), 65), "application/pdf")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = n.Normalize(context.Background(), []byte("not a png"), "image/png")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNormalizeRasterFailure(t *testing.T) {
	n := New(&fakeRaster{err: errors.New("pdftoppm: not a pdf")}, 1<<20)
	_, err := n.Normalize(context.Background(), []byte("junk"), "application/pdf")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestAccepted(t *testing.T) {
	assert.True(t, Accepted("application/pdf"))
	assert.True(t, Accepted("image/jpeg; q=0.9"))
	assert.False(t, Accepted("application/msword"))
	assert.False(t, Accepted(""))
}
