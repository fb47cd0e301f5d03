package host

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/nsf/termbox-go"
	"golang.org/x/term"

	"github.com/ezrec/chip8/display"
	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/io"
)

const (
	KEY_HOLD = 150 * time.Millisecond // Terminals have no key release; a press is held this long.
)

// Terminal runs a machine on a text console, two display rows per line.
// Escape or Ctrl-C stops it.
type Terminal struct {
	Verbose bool     // If set, enables verbose logging.
	Machine Machine  // Machine to run.
	Buzzer  Sounder  // Buzzer, or nil for silence.
	Input   *os.File // Console input; os.Stdin if nil.

	held [io.KEY_COUNT]*time.Timer // Pending key releases.
}

// NewTerminal creates a terminal host for a machine.
func NewTerminal(machine Machine) (tm *Terminal) {
	tm = &Terminal{
		Machine: machine,
	}

	return
}

// termCell returns the colours of the upper half block for a pair of rows.
func termCell(top, bottom bool) (fg, bg termbox.Attribute) {
	fg, bg = termbox.ColorBlack, termbox.ColorBlack
	if top {
		fg = termbox.ColorWhite
	}
	if bottom {
		bg = termbox.ColorWhite
	}

	return
}

// draw paints the display.
func (tm *Terminal) draw() {
	frame := tm.Machine.Snapshot()
	for y := 0; y < display.HEIGHT; y += 2 {
		for x := range display.WIDTH {
			fg, bg := termCell(frame[y][x], frame[y+1][x])
			termbox.SetCell(x, y/2, '▀', fg, bg)
		}
	}
	termbox.Flush()
}

// press handles a keyboard character.
func (tm *Terminal) press(ch rune) {
	key, ok := KeyOf(ch)
	if !ok {
		return
	}

	err := tm.Machine.KeyDown(key)
	if err != nil && tm.Verbose {
		log.Printf("terminal: key %x: %v", key, err)
	}

	if tm.held[key] == nil {
		tm.held[key] = time.AfterFunc(KEY_HOLD, func() {
			err := tm.Machine.KeyUp(key)
			if err != nil && tm.Verbose {
				log.Printf("terminal: key %x release: %v", key, err)
			}
		})
	} else {
		tm.held[key].Reset(KEY_HOLD)
	}
}

// pollKeys runs in a goroutine, feeding key presses to the machine.
func (tm *Terminal) pollKeys(ctx context.Context, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			switch {
			case ev.Key == termbox.KeyEsc, ev.Key == termbox.KeyCtrlC:
				cancel()
				return
			case ev.Ch != 0:
				tm.press(ev.Ch)
			}
		case termbox.EventError:
			if tm.Verbose {
				log.Printf("terminal: %v", ev.Err)
			}
			cancel()
			return
		case termbox.EventInterrupt:
			return
		}
	}
}

// Run takes over the console, and runs until stopped or the machine halts.
func (tm *Terminal) Run(ctx context.Context) (err error) {
	input := tm.Input
	if input == nil {
		input = os.Stdin
	}

	fd := int(input.Fd())
	if !term.IsTerminal(fd) {
		err = ErrNotTerminal
		return
	}

	if width, height, _err := term.GetSize(fd); _err == nil && tm.Verbose {
		if width < display.WIDTH || height < display.HEIGHT/2 {
			log.Printf("terminal: %dx%d is smaller than the %dx%d display", width, height, display.WIDTH, display.HEIGHT/2)
		}
	}

	err = termbox.Init()
	if err != nil {
		return
	}
	defer termbox.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go tm.pollKeys(ctx, cancel)
	defer termbox.Interrupt()

	tm.draw()

	err = tm.Machine.Run(ctx, func(status emulator.Status) error {
		soundOf(tm.Buzzer, status)
		if status.Redraw {
			tm.draw()
		}
		return nil
	})

	if tm.Buzzer != nil {
		tm.Buzzer.Sound(false)
	}
	if tm.Verbose {
		log.Printf("terminal: stopped after %d instructions", tm.Machine.Ticks())
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	return
}
