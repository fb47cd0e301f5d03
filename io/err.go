package io

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	// Keypad errors
	ErrChannelFull = errors.New(f("channel full"))
	ErrKeyInvalid  = errors.New(f("key invalid"))
)
