package host

import (
	"unicode"
)

// KEYPAD_LAYOUT maps the 4x4 block of keys from '1' to 'v' on a QWERTY
// keyboard onto the COSMAC VIP hex keypad:
//
//	1 2 3 4      1 2 3 C
//	q w e r  ->  4 5 6 D
//	a s d f      7 8 9 E
//	z x c v      A 0 B F
var KEYPAD_LAYOUT = map[rune]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// KeyOf returns the keypad key for a keyboard character.
func KeyOf(ch rune) (key uint8, ok bool) {
	key, ok = KEYPAD_LAYOUT[unicode.ToLower(ch)]
	return
}
