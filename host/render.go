package host

import (
	"image/color"

	"github.com/ezrec/chip8/display"
)

const (
	RGBA_SIZE = display.WIDTH * display.HEIGHT * 4 // Bytes in an RGBA frame.
)

// Palette is the pair of colours for set and clear pixels.
type Palette struct {
	On  color.RGBA
	Off color.RGBA
}

var DEFAULT_PALETTE = Palette{
	On:  color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	Off: color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff},
}

// RenderRGBA writes a frame as RGBA pixels, row-major. pixels must hold at
// least RGBA_SIZE bytes.
func RenderRGBA(frame *display.Frame, pixels []byte, palette Palette) {
	for y, row := range frame {
		for x, set := range row {
			c := palette.Off
			if set {
				c = palette.On
			}
			n := (y*display.WIDTH + x) * 4
			pixels[n+0] = c.R
			pixels[n+1] = c.G
			pixels[n+2] = c.B
			pixels[n+3] = c.A
		}
	}
}
