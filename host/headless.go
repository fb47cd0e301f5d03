//go:build headless

package host

// Window is not available without a display.
type Window struct {
	Verbose bool
	Title   string
	Scale   int
	Rate    int
	Palette Palette
	Machine Machine
	Buzzer  Sounder
}

func NewWindow(machine Machine) (win *Window) {
	win = &Window{
		Palette: DEFAULT_PALETTE,
		Machine: machine,
	}

	return
}

func (win *Window) Run() error {
	return ErrHeadless
}

// Buzzer is not available without an audio device.
type Buzzer struct {
	Verbose bool
}

func NewBuzzer() (bz *Buzzer, err error) {
	err = ErrHeadless
	return
}

func (bz *Buzzer) Sound(on bool) {}

func (bz *Buzzer) Close() error {
	return nil
}
