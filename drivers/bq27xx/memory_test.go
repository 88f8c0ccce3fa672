package bq27xx

import (
	"errors"
	"testing"
	"time"

	"fuelgauge-go/drivers/bq27xx/bq27xxsim"
)

func newTestDevice(g *bq27xxsim.Gauge) *Device {
	cfg := DefaultConfig()
	cfg.Sleep = func(time.Duration) {} // no real delays under test
	return New(g, cfg)
}

func TestMemoryBlockChecksum(t *testing.T) {
	var blk MemoryBlock
	if got := blk.Checksum(); got != 0xFF {
		t.Fatalf("zero block checksum = %#02x, want 0xFF", got)
	}

	// checksum(B) == 0xFF - (sum(B) mod 256), for a spread of fill patterns.
	for _, fill := range []byte{0x01, 0x5A, 0x80, 0xFF} {
		var sum int
		for i := 0; i < BlockSize; i++ {
			v := fill + byte(i)
			blk.SetByte(i, v)
			sum += int(v)
		}
		want := byte(0xFF - (sum % 256))
		if got := blk.Checksum(); got != want {
			t.Fatalf("fill %#02x: checksum = %#02x, want %#02x", fill, got, want)
		}
	}
}

func TestMemoryBlockChecksumAfterMutate(t *testing.T) {
	var blk MemoryBlock
	blk.SetByte(0, 0x12)
	before := blk.Checksum()

	blk.SetByte(17, 0x34)
	after := blk.Checksum()
	if before == after {
		t.Fatal("checksum did not change after mutation")
	}
	if want := byte(0xFF - 0x12 - 0x34); after != want {
		t.Fatalf("checksum = %#02x, want %#02x", after, want)
	}
}

func TestMemoryBlockByteRoundTrip(t *testing.T) {
	var blk MemoryBlock
	for i := 0; i < BlockSize; i++ {
		v := byte(i*7 + 3)
		blk.SetByte(i, v)
		if got := blk.Byte(i); got != v {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got, v)
		}
	}
}

func TestMemoryBlockWordBE(t *testing.T) {
	var blk MemoryBlock
	blk.SetWordBE(6, 3000)
	if blk.Byte(6) != 0x0B || blk.Byte(7) != 0xB8 {
		t.Fatalf("big-endian encoding = %#02x %#02x, want 0x0B 0xB8", blk.Byte(6), blk.Byte(7))
	}
	if got := blk.WordBE(6); got != 3000 {
		t.Fatalf("WordBE = %d, want 3000", got)
	}
}

func TestMemoryBlockIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range index")
		}
	}()
	var blk MemoryBlock
	blk.SetByte(BlockSize, 0)
}

func TestReadBlock(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	blk, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if got := blk.WordBE(6); got != 1340 {
		t.Fatalf("design capacity in block = %d, want 1340", got)
	}
}

func TestReadBlockIdempotentSelect(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	first, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("first ReadBlock: %v", err)
	}
	second, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("second ReadBlock: %v", err)
	}
	for i := 0; i < BlockSize; i++ {
		if first.Byte(i) != second.Byte(i) {
			t.Fatalf("byte %d differs between selects: %#02x vs %#02x", i, first.Byte(i), second.Byte(i))
		}
	}
}

func TestReadBlockTornRead(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	g.TearNextReads(1)
	if _, err := d.ReadBlock(82, 0); !errors.Is(err, ErrChecksum) {
		t.Fatalf("torn read error = %v, want ErrChecksum", err)
	}

	// Retrying the whole selection recovers.
	if _, err := d.ReadBlock(82, 0); err != nil {
		t.Fatalf("retry after torn read: %v", err)
	}
}

func TestBlockSelectRetriesGlitch(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	g.GlitchNextSelects(1)
	if _, err := d.ReadBlock(82, 0); err != nil {
		t.Fatalf("ReadBlock with one glitched select: %v", err)
	}
}

func TestBlockSelectFailsAfterBound(t *testing.T) {
	g := bq27xxsim.New()
	cfg := DefaultConfig()
	cfg.Sleep = func(time.Duration) {}
	cfg.SelectPolls = 2
	d := New(g, cfg)

	// Select another block first so the stale registers cannot match, then
	// glitch more selects than the bound allows.
	if _, err := d.ReadBlock(82, 0); err != nil {
		t.Fatalf("priming ReadBlock: %v", err)
	}
	g.GlitchNextSelects(5)
	if _, err := d.ReadBlock(105, 0); !errors.Is(err, ErrSelectFailed) {
		t.Fatalf("exhausted select error = %v, want ErrSelectFailed", err)
	}
}

func TestWriteBlock(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	blk, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	blk.SetWordBE(6, 3000)
	if err := d.WriteBlock(blk); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	flash := g.FlashBlock(82, 0)
	if flash[6] != 0x0B || flash[7] != 0xB8 {
		t.Fatalf("committed bytes = %#02x %#02x, want 0x0B 0xB8", flash[6], flash[7])
	}
	if g.InCfgUpdate() {
		t.Fatal("gauge left in CFGUPDATE after commit")
	}
}

func TestWriteBlockDetectsCorruption(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	blk, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	blk.SetWordBE(6, 3000)

	g.CorruptNextCommit()
	if err := d.WriteBlock(blk); !errors.Is(err, ErrChecksum) {
		t.Fatalf("corrupted commit error = %v, want ErrChecksum", err)
	}
}

func TestWriteBlockUnsealsFirst(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	blk, err := d.ReadBlock(82, 0)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	g.SetSealed(true)
	d.invalidateChipState() // driver must not trust a stale mirror

	blk.SetWordBE(6, 2000)
	if err := d.WriteBlock(blk); err != nil {
		t.Fatalf("WriteBlock on sealed gauge: %v", err)
	}
	if g.Sealed() {
		t.Fatal("gauge still sealed after write sequence")
	}
}
