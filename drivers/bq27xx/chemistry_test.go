package bq27xx

import (
	"errors"
	"testing"

	"fuelgauge-go/drivers/bq27xx/bq27xxsim"
)

func TestChemIDRead(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	id, err := d.ChemID()
	if err != nil {
		t.Fatalf("ChemID: %v", err)
	}
	if id != ChemIDB4200 {
		t.Fatalf("chem id = %v, want b4200", id)
	}
}

func TestSetChemID(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	if err := d.SetChemID(ChemIDC4400); err != nil {
		t.Fatalf("SetChemID: %v", err)
	}
	if got := g.ChemID(); got != 0x3142 {
		t.Fatalf("gauge chem id = %#x, want 0x3142", got)
	}
	if g.InCfgUpdate() {
		t.Fatal("gauge left in CFGUPDATE after chem change")
	}

	id, err := d.ChemID()
	if err != nil {
		t.Fatalf("ChemID: %v", err)
	}
	if id != ChemIDC4400 {
		t.Fatalf("chem id readback = %v, want c4400", id)
	}
}

func TestSetChemIDUnknown(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	if err := d.SetChemID(ChemIDUnknown); !errors.Is(err, ErrUnknownChem) {
		t.Fatalf("error = %v, want ErrUnknownChem", err)
	}
	if g.InCfgUpdate() {
		t.Fatal("rejected chem change must not touch the chip")
	}
}

func TestDesignCapacityRead(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	mAh, err := d.DesignCapacityMilliAh()
	if err != nil {
		t.Fatalf("DesignCapacityMilliAh: %v", err)
	}
	if mAh != 1340 {
		t.Fatalf("design capacity = %d, want 1340", mAh)
	}
}

func TestSetDesignCapacity(t *testing.T) {
	g := bq27xxsim.New()
	d := newTestDevice(g)

	if err := d.SetDesignCapacityMilliAh(3000); err != nil {
		t.Fatalf("SetDesignCapacityMilliAh: %v", err)
	}

	// The two capacity bytes are big-endian inside the State block and the
	// committed checksum must cover the new contents.
	flash := g.FlashBlock(82, 0)
	if flash[6] != 0x0B || flash[7] != 0xB8 {
		t.Fatalf("capacity bytes = %#02x %#02x, want 0x0B 0xB8", flash[6], flash[7])
	}

	mAh, err := d.DesignCapacityMilliAh()
	if err != nil {
		t.Fatalf("readback: %v", err)
	}
	if mAh != 3000 {
		t.Fatalf("readback = %d, want 3000", mAh)
	}
}
