package bq27xx

import (
	"errors"
	"testing"
	"time"

	"fuelgauge-go/drivers/bq27xx/bq27xxsim"
)

func TestProbe(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	chip, err := d.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if chip != ChipBQ27426 {
		t.Fatalf("chip = %v, want bq27426", chip)
	}
}

func TestProbeAppliesBQ27427Errata(t *testing.T) {
	g := bq27xxsim.New()
	g.SetDeviceType(0x427)

	// Factory image with a negative CC gain sign bit.
	cal := g.FlashBlock(105, 0)
	cal[5] = 0x83
	g.SetFlashBlock(105, 0, cal)

	d := newTestDevice(g)
	chip, err := d.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if chip != ChipBQ27427 {
		t.Fatalf("chip = %v, want bq27427", chip)
	}
	if got := g.FlashBlock(105, 0)[5]; got != 0x03 {
		t.Fatalf("CC cal byte = %#02x, want sign bit cleared (0x03)", got)
	}
}

func TestProbeSkipsErrataWhenPositive(t *testing.T) {
	g := bq27xxsim.New()
	g.SetDeviceType(0x427)

	d := newTestDevice(g)
	if _, err := d.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if g.InCfgUpdate() {
		t.Fatal("probe entered CFGUPDATE with nothing to fix")
	}
}

func TestSealUnseal(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	if err := d.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !g.Sealed() {
		t.Fatal("gauge not sealed")
	}

	if err := d.Unseal(); err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if g.Sealed() {
		t.Fatal("gauge still sealed")
	}

	st, err := d.ControlStatus()
	if err != nil {
		t.Fatalf("ControlStatus: %v", err)
	}
	if st.Has(CtrlSealed) {
		t.Fatal("SS bit still set after unseal")
	}
}

func TestUnsealWrongKey(t *testing.T) {
	g := bq27xxsim.New()
	g.SetSealed(true)

	cfg := DefaultConfig()
	cfg.Sleep = func(time.Duration) {}
	cfg.UnsealKey = [2]uint16{0x1234, 0x5678}
	d := New(g, cfg)

	if err := d.Unseal(); !errors.Is(err, ErrSealed) {
		t.Fatalf("error = %v, want ErrSealed", err)
	}
}

func TestResetReestablishesState(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	// Establish mirrors, then reset: the chip re-seals itself and the
	// driver must not trust anything it knew before.
	if _, err := d.ReadBlock(82, 0); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !g.Sealed() {
		t.Fatal("simulated gauge should re-seal on full reset")
	}

	// The next sequence must notice the seal and recover on its own.
	blk, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("ReadBlock after reset: %v", err)
	}
	blk.SetWordBE(6, 2500)
	if err := d.WriteBlock(blk); err != nil {
		t.Fatalf("WriteBlock after reset: %v", err)
	}
}

func TestFlags(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	flags, err := d.Flags()
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	if !flags.Has(FlagBatDet) {
		t.Fatal("battery-detect flag missing")
	}
	if flags.Has(FlagCfgUpMode) {
		t.Fatal("CFGUPDATE flag set on idle gauge")
	}
}

func TestConfigDefaults(t *testing.T) {
	g := bq27xxsim.New()
	d := New(g, Config{})

	if d.addr != AddressDefault {
		t.Fatalf("addr = %#x, want %#x", d.addr, AddressDefault)
	}
	if d.cfg.FlagPollRetries != 10 || d.cfg.FlagPollInterval != 500*time.Millisecond {
		t.Fatalf("flag poll defaults = %d x %v", d.cfg.FlagPollRetries, d.cfg.FlagPollInterval)
	}
	if d.cfg.UnsealKey != [2]uint16{0x8000, 0x8000} {
		t.Fatalf("unseal key default = %#x", d.cfg.UnsealKey)
	}
}
