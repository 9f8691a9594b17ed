package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// RowHeight is the pixel pitch of one text line.
const RowHeight = 8

// Panel is the part of a periph display device the renderer needs;
// *ssd1306.Dev satisfies it.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Renderer draws text lines onto a monochrome panel with a fixed-width face.
type Renderer struct {
	panel Panel
	face  font.Face
}

func NewRenderer(p Panel) (*Renderer, error) {
	face, err := MonoFace()
	if err != nil {
		return nil, err
	}
	return &Renderer{panel: p, face: face}, nil
}

// MonoFace returns Go Mono sized so that a line fits in RowHeight pixels.
func MonoFace() (font.Face, error) {
	f, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("display: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    RowHeight,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("display: new face: %w", err)
	}
	return face, nil
}

// Render clears the panel and draws lines top to bottom, one per row.
func (r *Renderer) Render(lines [Rows]string) error {
	img := image1bit.NewVerticalLSB(r.panel.Bounds())

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: r.face,
	}
	for i, line := range lines {
		if line == "" {
			continue
		}
		drawer.Dot = fixed.P(0, (i+1)*RowHeight-1)
		drawer.DrawString(line)
	}

	if err := r.panel.Draw(r.panel.Bounds(), img, image.Point{}); err != nil {
		return fmt.Errorf("display: draw: %w", err)
	}
	return nil
}

// Splash shows a short banner, used once at startup.
func (r *Renderer) Splash(title string) error {
	return r.Render([Rows]string{title, "", "starting...", ""})
}
