// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/ezrec/chip8/emulator"
	"github.com/ezrec/chip8/host"
)

func main() {
	var compile string
	var output string
	var rate int
	var scale int
	var terminal bool
	var mute bool
	var shiftVy bool
	var verbose bool

	flag.StringVar(&compile, "c", "", ".asm file to assemble, instead of a ROM")
	flag.StringVar(&output, "o", "", "Save the assembled ROM, do not execute")
	flag.IntVar(&rate, "rate", emulator.DEFAULT_RATE, "Instructions per second")
	flag.IntVar(&scale, "scale", 10, "Window pixels per display pixel")
	flag.BoolVar(&terminal, "t", false, "Run on the terminal, not in a window")
	flag.BoolVar(&mute, "m", false, "Mute the buzzer")
	flag.BoolVar(&shiftVy, "shift-vy", false, "Shift vy into vx (COSMAC VIP shifts)")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Rate = rate
	emu.Cpu.ShiftUsesVy = shiftVy

	var name string

	if len(compile) != 0 {
		if flag.NArg() != 0 {
			log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
		}
		name = compile

		// Assemble a new program.
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		err = emu.Assemble(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if len(output) != 0 {
			err = os.WriteFile(output, emu.Program.Binary(), 0o644)
			if err != nil {
				log.Fatalf("%v: %v", output, err)
			}
			return
		}
	} else {
		if flag.NArg() != 1 {
			log.Fatalf("usage: %v [options] ROM", os.Args[0])
		}
		name = flag.Arg(0)

		rom, err := os.ReadFile(name)
		if err != nil {
			log.Fatalf("%v: %v", name, err)
		}

		err = emu.Load(rom)
		if err != nil {
			log.Fatalf("%v: %v", name, err)
		}
	}

	var buzzer host.Sounder
	if !mute {
		bz, err := host.NewBuzzer()
		if err != nil {
			log.Printf("%v: no sound: %v", os.Args[0], err)
		} else {
			bz.Verbose = verbose
			defer bz.Close()
			buzzer = bz
		}
	}

	var err error
	if terminal {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		tm := host.NewTerminal(emu)
		tm.Verbose = verbose
		tm.Buzzer = buzzer
		err = tm.Run(ctx)
	} else {
		win := host.NewWindow(emu)
		win.Verbose = verbose
		win.Title = filepath.Base(name)
		win.Scale = scale
		win.Rate = rate
		win.Buzzer = buzzer
		err = win.Run()
	}

	if err != nil {
		log.Fatalf("%v: %v", name, err)
	}
}
