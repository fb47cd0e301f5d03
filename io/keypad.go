// Package io provides the devices the CHIP-8 CPU polls: the hexadecimal
// keypad latch and the 60Hz countdown timers.
//
// Devices are owned by the goroutine that runs the CPU. The only entry
// points safe to call from elsewhere are Keypad.KeyDown and Keypad.KeyUp,
// which queue events that the owner applies between instructions.
package io

const (
	KEY_COUNT = 16 // Number of keys on the keypad.
	KEY_QUEUE = 64 // Depth of the pending key event queue.
)

// KeyEvent is a single press or release of a keypad key.
type KeyEvent struct {
	Key  uint8
	Down bool
}

// Keypad is the 16 key input latch.
type Keypad struct {
	pressed [KEY_COUNT]bool
	events  chan KeyEvent
}

// NewKeypad creates a keypad with no keys pressed.
func NewKeypad() (kp *Keypad) {
	kp = &Keypad{
		events: make(chan KeyEvent, KEY_QUEUE),
	}

	return
}

// post queues an event without blocking the caller.
func (kp *Keypad) post(ev KeyEvent) (err error) {
	if ev.Key >= KEY_COUNT {
		err = ErrKeyInvalid
		return
	}

	select {
	case kp.events <- ev:
	default:
		err = ErrChannelFull
	}

	return
}

// KeyDown queues a key press.
func (kp *Keypad) KeyDown(key uint8) error {
	return kp.post(KeyEvent{Key: key, Down: true})
}

// KeyUp queues a key release.
func (kp *Keypad) KeyUp(key uint8) error {
	return kp.post(KeyEvent{Key: key, Down: false})
}

// Apply drains the event queue into the latch, returning the number of
// events applied. Only the owning goroutine may call Apply.
func (kp *Keypad) Apply() (applied int) {
	for {
		select {
		case ev := <-kp.events:
			kp.pressed[ev.Key] = ev.Down
			applied++
		default:
			return
		}
	}
}

// Pressed returns the state of a key. Only the low nibble of key is used.
func (kp *Keypad) Pressed(key uint8) bool {
	return kp.pressed[key&0xf]
}

// First returns the lowest numbered pressed key.
func (kp *Keypad) First() (key uint8, ok bool) {
	for n, down := range kp.pressed {
		if down {
			key = uint8(n)
			ok = true
			return
		}
	}

	return
}

// State returns a copy of the latch.
func (kp *Keypad) State() (state [KEY_COUNT]bool) {
	state = kp.pressed
	return
}
