package bq27xx

import (
	"testing"

	"fuelgauge-go/drivers/bq27xx/bq27xxsim"
)

func TestVoltageDecode(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	mv, err := d.VoltageMilliV()
	if err != nil {
		t.Fatalf("VoltageMilliV: %v", err)
	}
	if mv != 3700 {
		t.Fatalf("voltage = %d mV, want 3700 (1:1 scale)", mv)
	}
	// Exactly one 2-byte read at the voltage register.
	if n := g.ReadCount(0x04); n != 1 {
		t.Fatalf("voltage register read %d times, want 1", n)
	}
}

func TestTemperatureDecode(t *testing.T) {
	g := bq27xxsim.New()
	g.SetRegister(0x02, 2981) // tenths of a kelvin

	d := newTestDevice(g)
	deciC, err := d.TemperatureDeciC()
	if err != nil {
		t.Fatalf("TemperatureDeciC: %v", err)
	}
	if deciC != 250 {
		t.Fatalf("temperature = %d deci-degC, want 250 (25.0 degC)", deciC)
	}
}

func TestTemperatureBelowZero(t *testing.T) {
	g := bq27xxsim.New()
	g.SetRegister(0x02, 2681) // -5.0 degC

	d := newTestDevice(g)
	deciC, err := d.TemperatureDeciC()
	if err != nil {
		t.Fatalf("TemperatureDeciC: %v", err)
	}
	if deciC != -50 {
		t.Fatalf("temperature = %d deci-degC, want -50", deciC)
	}
}

func TestStateOfChargeClamped(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	soc, err := d.StateOfChargePercent()
	if err != nil {
		t.Fatalf("StateOfChargePercent: %v", err)
	}
	if soc != 87 {
		t.Fatalf("soc = %d, want 87", soc)
	}

	// A glitched register read above 100 must be clamped, never wrapped.
	g.SetRegister(0x1C, 150)
	soc, err = d.StateOfChargePercent()
	if err != nil {
		t.Fatalf("StateOfChargePercent: %v", err)
	}
	if soc != 100 {
		t.Fatalf("soc = %d, want clamp to 100", soc)
	}
}

func TestSignedReadings(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	mA, err := d.AverageCurrentMilliA()
	if err != nil {
		t.Fatalf("AverageCurrentMilliA: %v", err)
	}
	if mA != -120 {
		t.Fatalf("average current = %d mA, want -120", mA)
	}

	mW, err := d.AveragePowerMilliW()
	if err != nil {
		t.Fatalf("AveragePowerMilliW: %v", err)
	}
	if mW != -438 {
		t.Fatalf("average power = %d mW, want -438", mW)
	}
}

func TestCapacities(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	rem, err := d.RemainingCapacityMilliAh()
	if err != nil {
		t.Fatalf("RemainingCapacityMilliAh: %v", err)
	}
	if rem != 1166 {
		t.Fatalf("remaining = %d mAh, want 1166", rem)
	}

	full, err := d.FullChargeCapacityMilliAh()
	if err != nil {
		t.Fatalf("FullChargeCapacityMilliAh: %v", err)
	}
	if full != 1340 {
		t.Fatalf("full charge = %d mAh, want 1340", full)
	}

	soh, err := d.StateOfHealthPercent()
	if err != nil {
		t.Fatalf("StateOfHealthPercent: %v", err)
	}
	if soh != 99 {
		t.Fatalf("soh = %d, want 99", soh)
	}
}
