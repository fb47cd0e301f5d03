//go:build !headless

package host

import (
	"errors"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/ezrec/chip8/display"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
)

// windowKeys are the keyboard keys of KEYPAD_LAYOUT.
var windowKeys = map[ebiten.Key]rune{
	ebiten.KeyDigit1: '1', ebiten.KeyDigit2: '2', ebiten.KeyDigit3: '3', ebiten.KeyDigit4: '4',
	ebiten.KeyQ: 'q', ebiten.KeyW: 'w', ebiten.KeyE: 'e', ebiten.KeyR: 'r',
	ebiten.KeyA: 'a', ebiten.KeyS: 's', ebiten.KeyD: 'd', ebiten.KeyF: 'f',
	ebiten.KeyZ: 'z', ebiten.KeyX: 'x', ebiten.KeyC: 'c', ebiten.KeyV: 'v',
}

// Window runs a machine in a desktop window. Escape closes the window.
type Window struct {
	Verbose bool    // If set, enables verbose logging.
	Title   string  // Window title.
	Scale   int     // Screen pixels per display pixel.
	Rate    int     // Instructions per second.
	Palette Palette // Display colours.
	Machine Machine // Machine to run.
	Buzzer  Sounder // Buzzer, or nil for silence.

	pacer  Pacer
	image  *ebiten.Image
	pixels []byte
}

// NewWindow creates a window for a machine, with default settings.
func NewWindow(machine Machine) (win *Window) {
	win = &Window{
		Title:   "CHIP-8",
		Scale:   10,
		Rate:    emulator.DEFAULT_RATE,
		Palette: DEFAULT_PALETTE,
		Machine: machine,
	}

	return
}

// Run opens the window, and runs until it is closed or the machine halts.
func (win *Window) Run() (err error) {
	win.pacer = Pacer{Rate: win.Rate, Hz: ebiten.DefaultTPS}

	ebiten.SetWindowSize(display.WIDTH*win.Scale, display.HEIGHT*win.Scale)
	ebiten.SetWindowTitle(win.Title)

	err = ebiten.RunGame(win)

	if win.Buzzer != nil {
		win.Buzzer.Sound(false)
	}
	if win.Verbose {
		log.Printf("window: stopped after %d instructions", win.Machine.Ticks())
	}

	return
}

// Update forwards key changes, then runs one frame of instructions.
func (win *Window) Update() (err error) {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	for kb, ch := range windowKeys {
		key, _ := KeyOf(ch)
		switch {
		case inpututil.IsKeyJustPressed(kb):
			err = win.Machine.KeyDown(key)
		case inpututil.IsKeyJustReleased(kb):
			err = win.Machine.KeyUp(key)
		}
		if errors.Is(err, io.ErrChannelFull) {
			if win.Verbose {
				log.Printf("window: key %x dropped", key)
			}
			err = nil
		}
		if err != nil {
			return
		}
	}

	for range win.pacer.Steps() {
		var status emulator.Status
		status, err = win.Machine.Step()
		if err != nil {
			return
		}
		soundOf(win.Buzzer, status)
	}

	return
}

// Draw renders the display, scaled to the window.
func (win *Window) Draw(screen *ebiten.Image) {
	if win.image == nil {
		win.image = ebiten.NewImage(display.WIDTH, display.HEIGHT)
		win.pixels = make([]byte, RGBA_SIZE)
	}

	frame := win.Machine.Snapshot()
	RenderRGBA(&frame, win.pixels, win.Palette)
	win.image.WritePixels(win.pixels)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(win.Scale), float64(win.Scale))
	screen.DrawImage(win.image, op)
}

// Layout sizes the screen to the scaled display.
func (win *Window) Layout(outsideWidth, outsideHeight int) (int, int) {
	return display.WIDTH * win.Scale, display.HEIGHT * win.Scale
}
