// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package display implements the CHIP-8 monochrome framebuffer.
package display

import (
	"log"
	"strings"
)

const (
	WIDTH        = 64 // Pixels per row.
	HEIGHT       = 32 // Rows.
	SPRITE_WIDTH = 8  // Pixels per sprite row (one byte, MSB first).
)

// Frame is a copy of the pixel grid, indexed [y][x].
type Frame [HEIGHT][WIDTH]bool

// String renders the frame as rows of '#' (set) and '.' (clear).
func (fr *Frame) String() string {
	var sb strings.Builder
	sb.Grow(HEIGHT * (WIDTH + 1))
	for _, row := range fr {
		for _, set := range row {
			if set {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Display is the XOR-drawn pixel grid.
type Display struct {
	Verbose bool

	frame Frame

	// PixelsFlipped counts pixels changed since the last ClearDirty.
	PixelsFlipped int
}

// NewDisplay creates a cleared display.
func NewDisplay() (dp *Display) {
	dp = &Display{}

	return
}

// Reset clears the grid and the dirty state.
func (dp *Display) Reset() {
	dp.frame = Frame{}
	dp.PixelsFlipped = 0
}

// Clear sets every pixel to clear.
func (dp *Display) Clear() {
	for y := range dp.frame {
		row := &dp.frame[y]
		for x, set := range row {
			if set {
				row[x] = false
				dp.PixelsFlipped++
			}
		}
	}

	if dp.Verbose {
		log.Printf("display: clear")
	}
}

// Pixel returns the state of the pixel at x, y, wrapping both coordinates.
func (dp *Display) Pixel(x, y int) bool {
	x %= WIDTH
	if x < 0 {
		x += WIDTH
	}
	y %= HEIGHT
	if y < 0 {
		y += HEIGHT
	}
	return dp.frame[y][x]
}

// Draw XORs an 8 pixel wide sprite, one byte per row, onto the grid at
// x, y. Coordinates wrap at the grid edges. Reports a collision if any set
// pixel was cleared.
func (dp *Display) Draw(x, y uint8, sprite []byte) (collision bool) {
	for row, bits := range sprite {
		py := (int(y) + row) % HEIGHT
		for col := range SPRITE_WIDTH {
			if bits&(0x80>>col) == 0 {
				continue
			}
			px := (int(x) + col) % WIDTH
			pixel := &dp.frame[py][px]
			if *pixel {
				collision = true
			}
			*pixel = !*pixel
			dp.PixelsFlipped++
		}
	}

	if dp.Verbose {
		log.Printf("display: draw %d,%d rows:%d collision:%v", x, y, len(sprite), collision)
	}

	return
}

// Snapshot returns a copy of the grid.
func (dp *Display) Snapshot() (frame Frame) {
	frame = dp.frame
	return
}

// Dirty is true if any pixel changed since the last ClearDirty.
func (dp *Display) Dirty() bool {
	return dp.PixelsFlipped != 0
}

// ClearDirty resets the change counter.
func (dp *Display) ClearDirty() {
	dp.PixelsFlipped = 0
}
