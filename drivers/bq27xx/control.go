package bq27xx

// Control subcommand engine. Every control operation is two bus
// transactions separated by a chip-dependent settle interval: the opcode is
// written as a word to 0x00/0x01, and for queries the result is read back
// from the same register pair once the chip has had time to compute it.

// writeControl issues an action-only subcommand.
func (d *Device) writeControl(sub uint16) error {
	return d.writeWord(cmdControl, sub)
}

// readControl issues a query subcommand and reads the result word after the
// configured settle interval.
func (d *Device) readControl(sub uint16) (uint16, error) {
	if err := d.writeControl(sub); err != nil {
		return 0, err
	}
	d.sleep(d.cfg.ControlSettle)
	return d.readWord(cmdControl)
}

// waitFlags polls the Flags register until all bits in mask are set.
// The chip exposes no per-query ready bit, so slow transitions (CFGUPDATE
// entry takes up to a second) are gated on Flags. Each poll sleeps first:
// the chip never reflects a mode change instantly.
func (d *Device) waitFlags(mask StatusFlags) error {
	for i := 0; i < d.cfg.FlagPollRetries; i++ {
		d.sleep(d.cfg.FlagPollInterval)

		flags, err := d.Flags()
		if err != nil {
			return err
		}
		if flags.Has(mask) {
			return nil
		}
	}
	return ErrPollTimeout
}

// enterConfigUpdate moves the chip to CFGUPDATE mode, unsealing first if
// the mirror says the data flash is sealed.
func (d *Device) enterConfigUpdate() error {
	if err := d.ensureUnsealed(); err != nil {
		return err
	}
	if err := d.writeControl(subSetCfgUpdate); err != nil {
		return err
	}
	return d.waitFlags(FlagCfgUpMode)
}
