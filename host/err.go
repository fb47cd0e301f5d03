package host

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	ErrHeadless    = errors.New(f("built without display and audio support"))
	ErrNotTerminal = errors.New(f("input is not a terminal"))
)
