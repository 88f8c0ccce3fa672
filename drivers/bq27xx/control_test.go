package bq27xx

import (
	"errors"
	"testing"
	"time"

	"fuelgauge-go/drivers/bq27xx/bq27xxsim"
)

func TestReadControlDeviceType(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	raw, err := d.DeviceType()
	if err != nil {
		t.Fatalf("DeviceType: %v", err)
	}
	if raw != 0x426 {
		t.Fatalf("device type = %#x, want 0x426", raw)
	}
}

func TestWaitFlagsReadyAfterKPolls(t *testing.T) {
	const k = 4

	g := bq27xxsim.New()
	g.CfgUpdatePolls = k

	var polls int
	cfg := DefaultConfig()
	cfg.Sleep = func(time.Duration) { polls++ }
	cfg.FlagPollRetries = 10
	d := New(g, cfg)

	// Settle the seal mirror first so only flag polls are counted below.
	if _, err := d.ControlStatus(); err != nil {
		t.Fatalf("ControlStatus: %v", err)
	}
	polls = 0

	if err := d.enterConfigUpdate(); err != nil {
		t.Fatalf("enterConfigUpdate: %v", err)
	}
	// The flag shows up on the k-th read, so at most k+1 attempts.
	if polls > k+1 {
		t.Fatalf("took %d polls, want at most %d", polls, k+1)
	}
	if !g.InCfgUpdate() {
		t.Fatal("gauge not in CFGUPDATE")
	}
}

func TestWaitFlagsBoundedRetries(t *testing.T) {
	g := bq27xxsim.New()
	g.CfgUpdatePolls = 8 // more polls than the configured bound below

	var polls int
	cfg := DefaultConfig()
	cfg.Sleep = func(time.Duration) { polls++ }
	cfg.FlagPollRetries = 3
	d := New(g, cfg)

	if _, err := d.ControlStatus(); err != nil {
		t.Fatalf("ControlStatus: %v", err)
	}
	polls = 0

	err := d.enterConfigUpdate()
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("error = %v, want ErrPollTimeout", err)
	}
	if polls != 3 {
		t.Fatalf("polled %d times, want exactly the configured bound of 3", polls)
	}
}

func TestWriteControlBusError(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	busErr := errors.New("arbitration lost")
	g.FailNextTx(busErr)
	if err := d.SoftReset(); !errors.Is(err, busErr) {
		t.Fatalf("error = %v, want the transport error surfaced as-is", err)
	}
}
