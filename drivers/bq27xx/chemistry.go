package bq27xx

// Battery chemistry profiles and data-flash configuration parameters.

// ChemID identifies one of the three built-in chemistry profiles.
// B4200 suits most hobby-grade 4.2 V cells.
type ChemID uint16

const (
	ChemIDUnknown ChemID = 0
	ChemIDA4350   ChemID = 0x3230 // 4.35 V profile
	ChemIDB4200   ChemID = 0x1202 // 4.2 V profile
	ChemIDC4400   ChemID = 0x3142 // 4.4 V profile
)

func (c ChemID) String() string {
	switch c {
	case ChemIDA4350:
		return "a4350"
	case ChemIDB4200:
		return "b4200"
	case ChemIDC4400:
		return "c4400"
	default:
		return "unknown"
	}
}

// ChemID reads the active chemistry profile.
func (d *Device) ChemID() (ChemID, error) {
	raw, err := d.readControl(subChemID)
	if err != nil {
		return ChemIDUnknown, err
	}
	switch id := ChemID(raw); id {
	case ChemIDA4350, ChemIDB4200, ChemIDC4400:
		return id, nil
	default:
		return ChemIDUnknown, nil
	}
}

// SetChemID selects a chemistry profile. The subcommand only takes effect
// in CFGUPDATE mode, and the soft reset afterwards makes the gauge reload
// its tables for the new profile.
func (d *Device) SetChemID(id ChemID) error {
	var sub uint16
	switch id {
	case ChemIDA4350:
		sub = subChemA
	case ChemIDB4200:
		sub = subChemB
	case ChemIDC4400:
		sub = subChemC
	default:
		return ErrUnknownChem
	}

	if err := d.enterConfigUpdate(); err != nil {
		return err
	}
	if err := d.writeControl(sub); err != nil {
		return err
	}
	return d.SoftReset()
}

// DesignCapacityMilliAh reads the programmed pack capacity from the State
// subclass.
func (d *Device) DesignCapacityMilliAh() (uint16, error) {
	blk, err := d.ReadBlock(classState, 0)
	if err != nil {
		return 0, err
	}
	return blk.WordBE(designCapacityOffset), nil
}

// SetDesignCapacityMilliAh programs the pack capacity via a data-flash
// read-modify-write of the State subclass.
func (d *Device) SetDesignCapacityMilliAh(capacity uint16) error {
	blk, err := d.ReadBlock(classState, 0)
	if err != nil {
		return err
	}
	blk.SetWordBE(designCapacityOffset, capacity)
	return d.WriteBlock(blk)
}
