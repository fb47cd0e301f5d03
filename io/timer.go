package io

const (
	TIMER_HZ = 60 // Countdown rate of the delay and sound timers.
)

// Timer is an 8-bit countdown register.
type Timer struct {
	value uint8
}

// Set loads the countdown.
func (tm *Timer) Set(value uint8) {
	tm.value = value
}

// Value returns the current countdown.
func (tm *Timer) Value() uint8 {
	return tm.value
}

// Active is true while the countdown is running.
func (tm *Timer) Active() bool {
	return tm.value > 0
}

// Tick counts down once. Reports stopped on the 1 to 0 transition only.
func (tm *Timer) Tick() (stopped bool) {
	if tm.value == 0 {
		return
	}

	tm.value--
	stopped = tm.value == 0

	return
}

// Reset stops the timer.
func (tm *Timer) Reset() {
	tm.value = 0
}
