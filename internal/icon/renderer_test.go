package icon

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestRenderGlyph(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	data, err := r.Render(nil, 'L')
	require.NoError(t, err)

	img := decodePNG(t, data)
	require.Equal(t, image.Rect(0, 0, Size, Size), img.Bounds())

	hasGlyph := false
	for y := 0; y < Size && !hasGlyph; y++ {
		for x := 0; x < Size; x++ {
			if cr, cg, cb, _ := img.At(x, y).RGBA(); cr > 0xf000 && cg < 0x1000 && cb > 0xf000 {
				hasGlyph = true
				break
			}
		}
	}
	require.True(t, hasGlyph)

	again, err := r.Render(nil, 'L')
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestRenderSource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for x := 0; x < 256; x++ {
		for y := 0; y < 256; y++ {
			src.Set(x, y, color.RGBA{R: 0x10, G: 0x80, B: 0x10, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	r, err := NewRenderer()
	require.NoError(t, err)
	data, err := r.Render(buf.Bytes(), 'L')
	require.NoError(t, err)
	img := decodePNG(t, data)
	require.Equal(t, Size, img.Bounds().Dx())
	_, g, _, _ := img.At(64, 64).RGBA()
	require.InDelta(t, 0x8080, g, 0x200)
}

func TestRenderUnsupported(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	_, err = r.Render([]byte("<svg></svg>"), 'L')
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	require.False(t, Supported([]byte("plain text")))
	require.False(t, Supported(nil))
}
