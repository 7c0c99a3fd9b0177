package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	Size     = 128
	FontSize = 62
)

var (
	backgroundColor = color.RGBA{R: 0x2b, G: 0x2d, B: 0x42, A: 0xff}
	borderColor     = color.RGBA{R: 0x44, G: 0x47, B: 0x6a, A: 0xff}
	glyphColor      = color.RGBA{R: 0xff, G: 0x00, B: 0xff, A: 0xff}
)

var supportedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

type RenderError struct {
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to render icon: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to render icon: %s", e.Reason)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer produces square PNG plugin icons.
type Renderer struct {
	mu   sync.Mutex // guards face
	face font.Face
}

func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, &RenderError{Reason: "parse font", Err: err}
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: FontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, &RenderError{Reason: "create font face", Err: err}
	}
	return &Renderer{face: face}, nil
}

// Supported reports whether data is an image format Render accepts.
func Supported(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	mt := mimetype.Detect(data)
	for _, t := range supportedTypes {
		if mt.Is(t) {
			return true
		}
	}
	return false
}

// Render converts source into a PNG icon. Without a source the glyph is drawn
// onto the default background instead.
func (r *Renderer) Render(source []byte, glyph rune) ([]byte, error) {
	var img image.Image
	if source != nil {
		if !Supported(source) {
			return nil, &RenderError{Reason: fmt.Sprintf("unsupported image type %s", mimetype.Detect(source).String())}
		}
		src, _, err := image.Decode(bytes.NewReader(source))
		if err != nil {
			return nil, &RenderError{Reason: "decode image", Err: err}
		}
		img = scale(src)
	} else {
		img = r.drawGlyph(glyph)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &RenderError{Reason: "encode png", Err: err}
	}
	return buf.Bytes(), nil
}

func scale(src image.Image) image.Image {
	if b := src.Bounds(); b.Dx() == Size && b.Dy() == Size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func background() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	xdraw.Draw(img, img.Bounds(), image.NewUniform(borderColor), image.Point{}, xdraw.Src)
	inner := image.Rect(4, 4, Size-4, Size-4)
	xdraw.Draw(img, inner, image.NewUniform(backgroundColor), image.Point{}, xdraw.Src)
	return img
}

func (r *Renderer) drawGlyph(glyph rune) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	img := background()
	text := string(glyph)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(glyphColor),
		Face: r.face,
	}
	bounds, advance := font.BoundString(r.face, text)
	height := bounds.Max.Y - bounds.Min.Y
	d.Dot = fixed.Point26_6{
		X: (fixed.I(Size) - advance) / 2,
		Y: (fixed.I(Size)-height)/2 - bounds.Min.Y,
	}
	d.DrawString(text)
	return img
}
