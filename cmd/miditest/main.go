package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	gatemidi "note-gate/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "monitor":
		err = monitor(arg(2))
	case "send":
		err = sendRun(arg(2))
	case "poll":
		pollDevices()
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  monitor <port> - Print note and CC messages from an input")
	fmt.Println("  send <port>    - Play a run of notes into an output (feed the gate)")
	fmt.Println("  poll           - Poll for device changes")
}

func listPorts() error {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	ports, err := gatemidi.ScanPorts(gatemidi.DefaultScanTimeout)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}

	for i, name := range ports.InNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range ports.OutNames() {
		fmt.Printf("  %d: %s\n", i, name)
	}
	return nil
}

// monitor prints what a port sends, e.g. the gate's output looped back
func monitor(name string) error {
	in, err := gatemidi.OpenInput(name)
	if err != nil {
		return err
	}
	defer in.Close()

	fmt.Printf("Monitoring %s. Ctrl+C to exit.\n", in.ID())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	start := time.Now()
	for {
		select {
		case <-sig:
			if d := in.Dropped(); d > 0 {
				fmt.Printf("\n%d events dropped\n", d)
			}
			return nil
		case evt, ok := <-in.Events():
			if !ok {
				return nil
			}
			fmt.Printf("%8.3fs  %s\n", time.Since(start).Seconds(), evt)
		}
	}
}

// sendRun plays a C major scale twice so a 3/2 pattern is easy to hear
func sendRun(name string) error {
	send, portName, err := gatemidi.OpenOutput(name)
	if err != nil {
		return err
	}
	fmt.Printf("Using output: %s\n", portName)

	scale := []uint8{60, 62, 64, 65, 67, 69, 71, 72}
	for round := 0; round < 2; round++ {
		for _, note := range scale {
			fmt.Printf("  note %d\n", note)
			if err := send(midi.NoteOn(0, note, 100)); err != nil {
				return err
			}
			time.Sleep(200 * time.Millisecond)
			if err := send(midi.NoteOff(0, note)); err != nil {
				return err
			}
			time.Sleep(50 * time.Millisecond)
		}
	}

	fmt.Println("Done!")
	return nil
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ports, err := gatemidi.ScanPorts(gatemidi.DefaultScanTimeout)
		if err != nil {
			fmt.Printf("\n[%s] %v\n", time.Now().Format("15:04:05"), err)
			time.Sleep(2 * time.Second)
			continue
		}

		inNames := ports.InNames()
		outNames := ports.OutNames()
		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
