package host

// Pacer spreads an instruction rate over a fixed frame rate. Steps that do
// not divide evenly are carried to later frames.
type Pacer struct {
	Rate int // Instructions per second.
	Hz   int // Frames per second.

	carry int
}

// Steps returns the instructions to run this frame.
func (pc *Pacer) Steps() (steps int) {
	if pc.Hz <= 0 {
		steps = pc.Rate
		return
	}

	total := pc.Rate + pc.carry
	steps = total / pc.Hz
	pc.carry = total % pc.Hz

	return
}
