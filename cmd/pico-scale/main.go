//go:build rp2040

// Command pico-scale reads an HX711 on two GPIOs and streams weight lines
// over UART0 once a second. Wiring below matches the bringup board.
package main

import (
	"machine"
	"strconv"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"loadcell-go/drivers/hx711"
)

const (
	doutPin = 2
	sckPin  = 3
	uartTX  = 0
	uartRX  = 1
	baud    = 115200
)

// rp2Pin adapts machine.Pin to the driver's pin contract.
type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) ConfigureInput() error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinInput})
	return nil
}

func (r rp2Pin) ConfigureOutput(initial bool) error {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	return nil
}

func (r rp2Pin) Set(b bool) { r.p.Set(b) }
func (r rp2Pin) Get() bool  { return r.p.Get() }

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	u := uartx.UART0
	_ = u.Configure(uartx.UARTConfig{
		BaudRate: baud,
		TX:       machine.Pin(uartTX),
		RX:       machine.Pin(uartRX),
	})

	dev, err := hx711.New(rp2Pin{machine.Pin(doutPin)}, rp2Pin{machine.Pin(sckPin)}, hx711.Config{})
	if err != nil {
		println("hx711:", err.Error())
		return
	}

	println("taring, keep the cell unloaded")
	offset, err := dev.Tare(0)
	if err != nil {
		println("tare:", err.Error())
		return
	}
	println("offset", offset)

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for range tick.C {
		w, err := dev.Weight()
		if err != nil {
			println("read:", err.Error())
			continue
		}
		line := "weight " + strconv.FormatFloat(w, 'f', 2, 64) + "\r\n"
		u.Write([]byte(line))
	}
}
