// Command scale-cli is an interactive calibration console. It runs the full
// hx711 driver against a simulated chip, so the tare / calibrate / weigh
// workflow can be walked through without hardware on the bench.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/google/shlex"

	"loadcell-go/drivers/hx711"
	"loadcell-go/errcode"
	"loadcell-go/x/mathx"
)

func main() {
	sim := newSimHX711()
	dev, err := hx711.New(sim.Dout(), sim.Sck(), hx711.Config{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	defer dev.Close()

	fmt.Println("scale console — 'help' lists commands, 'quit' exits")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		args, err := shlex.Split(in.Text())
		if err != nil {
			fmt.Println("parse:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			break
		}
		run(dev, sim, args)
	}
}

func run(dev *hx711.Device, sim *simHX711, args []string) {
	switch args[0] {
	case "help":
		fmt.Print(`  tare [samples]              zero the scale (default 10 samples)
  calibrate <mass> [samples]  derive scale factor from a reference mass
  weight                      one calibrated reading
  raw                         one uncalibrated conversion
  gain [128|64|32]            show or set amplifier gain
  power <on|off>              leave or enter power-down
  offset                      show the stored zero offset
  scale                       show the stored scale factor
  sim <mass>                  place a mass on the simulated cell
  quit
`)
	case "tare":
		off, err := dev.Tare(samplesArg(args, 1))
		reply(err, "offset = %d", off)
	case "calibrate":
		if len(args) < 2 {
			fmt.Println("usage: calibrate <reference-mass> [samples]")
			return
		}
		ref, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Println("bad reference mass:", args[1])
			return
		}
		sc, err := dev.Calibrate(ref, samplesArg(args, 2))
		reply(err, "scale = %g raw/unit", sc)
	case "weight":
		w, err := dev.Weight()
		reply(err, "%.2f", w)
	case "raw":
		v, err := dev.Raw()
		reply(err, "%d", v)
	case "gain":
		if len(args) == 1 {
			g, err := dev.Gain()
			reply(err, "gain = %d (channel %s)", g, g.Channel())
			return
		}
		v, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			fmt.Println("bad gain:", args[1])
			return
		}
		reply(dev.SetGain(hx711.Gain(v)), "gain = %s", args[1])
	case "power":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fmt.Println("usage: power <on|off>")
			return
		}
		reply(dev.SetPowerDown(args[1] == "off"), "power %s", args[1])
	case "offset":
		fmt.Println(dev.Offset())
	case "scale":
		fmt.Println(dev.Scale())
	case "sim":
		if len(args) < 2 {
			fmt.Println("usage: sim <mass>")
			return
		}
		g, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Println("bad mass:", args[1])
			return
		}
		sim.SetLoad(g)
		fmt.Printf("simulated load = %g\n", g)
	default:
		fmt.Println("unknown command; try 'help'")
	}
}

func reply(err error, format string, args ...any) {
	if err != nil {
		fmt.Printf("error (%s): %v\n", errcode.MapDriverErr(err), err)
		return
	}
	fmt.Printf(format+"\n", args...)
}

// samplesArg parses an optional sample count; 0 lets the driver default.
func samplesArg(args []string, idx int) int {
	if len(args) <= idx {
		return 0
	}
	n, err := strconv.Atoi(args[idx])
	if err != nil || n <= 0 {
		return 0
	}
	return mathx.Clamp(n, 1, 100)
}
