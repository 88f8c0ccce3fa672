//go:build pico

// cmd/pico-gauge/main.go
//
// Pico bring-up binary: one BQ27426/427 on I2C0, the gauge service on the
// bus, and a line-oriented console on UART0 for poking the gauge by hand.
package main

import (
	"context"
	"strconv"
	"time"

	"fuelgauge-go/bus"
	"fuelgauge-go/services/gauge"
	"fuelgauge-go/types"

	"github.com/google/shlex"
	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"machine"
)

// tiny itoa (no fmt on MCU)
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	sign := ""
	if i < 0 {
		sign = "-"
		i = -i
	}
	var buf [32]byte
	b := len(buf)
	for i > 0 {
		b--
		buf[b] = byte('0' + (i % 10))
		i /= 10
	}
	if sign != "" {
		b--
		buf[b] = '-'
	}
	return string(buf[b:])
}

func main() {
	// Give the USB CDC time to enumerate so logs show up reliably.
	time.Sleep(1500 * time.Millisecond)
	println("[gauge] boot …")

	ctx := context.Background()

	// I2C0 on GP4/GP5, 100 kHz (the gauge tops out at 400 kHz).
	sda := machine.GP4
	scl := machine.GP5
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	machine.I2C0.Configure(machine.I2CConfig{
		SDA:       sda,
		SCL:       scl,
		Frequency: 100_000,
	})

	// Console UART on GP0/GP1.
	uart := uartx.UART0
	_ = uart.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})

	b := bus.NewBus(16)
	svcConn := b.NewConnection("gauge")
	ui := b.NewConnection("console")

	go func() {
		err := gauge.Run(ctx, svcConn, machine.I2C0, gauge.Config{
			Name:         "main",
			Bus:          "i2c0",
			PollInterval: 5 * time.Second,
		})
		if err != nil {
			println("[gauge] service stopped:", err.Error())
		}
	}()

	// Print every published sample.
	valSub := ui.Subscribe(bus.T("gauge", "main", "value"))
	go func() {
		for m := range valSub.Channel() {
			if v, ok := m.Payload.(types.GaugeValue); ok {
				printValue(v)
			}
		}
	}()

	// Print faults as they happen.
	evtSub := ui.Subscribe(bus.T("gauge", "main", "event", "+"))
	go func() {
		for m := range evtSub.Channel() {
			if ev, ok := m.Payload.(types.GaugeEvent); ok {
				println("[gauge] event:", ev.Tag, "err:", ev.Err)
			}
		}
	}()

	console(ctx, ui, uart)
}

func printValue(v types.GaugeValue) {
	println("[gauge]",
		itoa(int(v.MilliV)), "mV,",
		itoa(int(v.TempDeciC)), "dC,",
		itoa(int(v.SOCPercent)), "% soc,",
		itoa(int(v.AvgCurrentMilliA)), "mA,",
		itoa(int(v.RemainingMilliAh)), "/", itoa(int(v.FullChgMilliAh)), "mAh")

	it := types.NewBitIter(types.GaugeFlags(v.Flags), types.GaugeFlagsTable[:])
	for name, ok := it.Next(); ok; name, ok = it.Next() {
		println("[gauge]   flag:", name)
	}
}

// console reads newline-terminated commands from the UART and dispatches
// them as gauge control verbs.
func console(ctx context.Context, ui *bus.Connection, uart *uartx.UART) {
	println("[console] ready; try 'help'")

	buf := make([]byte, 64)
	line := make([]byte, 0, 128)
	for {
		n, err := uart.RecvSomeContext(ctx, buf)
		if err != nil {
			println("[console] uart error:", err.Error())
			return
		}
		for _, c := range buf[:n] {
			if c == '\r' || c == '\n' {
				if len(line) > 0 {
					dispatch(ui, string(line))
					line = line[:0]
				}
				continue
			}
			line = append(line, c)
		}
	}
}

func dispatch(ui *bus.Connection, line string) {
	args, err := shlex.Split(line)
	if err != nil || len(args) == 0 {
		println("[console] parse error")
		return
	}

	switch args[0] {
	case "help":
		println("[console] commands:")
		println("  read             sample the gauge now")
		println("  cap <mAh>        set design capacity")
		println("  chem <profile>   a4350 | b4200 | c4400")
		println("  reset            full reset (reconfigure needed)")
		println("  softreset        partial reset")
		println("  seal | unseal    data-flash access")
	case "read":
		request(ui, "read", nil)
	case "cap":
		if len(args) != 2 {
			println("[console] usage: cap <mAh>")
			return
		}
		mAh, err := strconv.Atoi(args[1])
		if err != nil || mAh <= 0 || mAh > 0xFFFF {
			println("[console] bad capacity:", args[1])
			return
		}
		request(ui, "set_capacity", types.SetDesignCapacity{MilliAh: uint16(mAh)})
	case "chem":
		if len(args) != 2 {
			println("[console] usage: chem <profile>")
			return
		}
		request(ui, "set_chem", types.SetChemistry{Profile: args[1]})
	case "reset":
		request(ui, "reset", nil)
	case "softreset":
		request(ui, "soft_reset", nil)
	case "seal":
		request(ui, "seal", nil)
	case "unseal":
		request(ui, "unseal", nil)
	default:
		println("[console] unknown command:", args[0])
	}
}

func request(ui *bus.Connection, verb string, payload any) {
	req := ui.NewMessage(bus.T("gauge", "main", "control", verb), payload, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	reply, err := ui.RequestWait(ctx, req)
	if err != nil {
		println("[console]", verb, "-> no reply")
		return
	}
	switch r := reply.Payload.(type) {
	case types.OKReply:
		println("[console]", verb, "-> ok")
	case types.ErrorReply:
		println("[console]", verb, "-> error:", r.Error)
	default:
		println("[console]", verb, "-> unexpected reply")
	}
}
