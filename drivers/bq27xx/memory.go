package bq27xx

// Data-flash block engine. Configuration parameters live in 32-byte blocks
// addressed by (subclass, block index) and guarded by an 8-bit checksum.
// There is no atomic commit primitive: a write is 32 single-byte register
// writes plus a proposed checksum, and verification-by-readback is the only
// correctness check available.

// BlockSize is the fixed data-flash block length.
const BlockSize = 32

// MemoryBlock mirrors one data-flash block. It is transient: created by
// ReadBlock, mutated in place, written back by WriteBlock and then
// discarded. Out-of-range offsets are a programming fault and panic.
type MemoryBlock struct {
	Class uint8
	Block uint8

	raw [BlockSize]byte
}

// Checksum is 0xFF minus the low byte of the sum of all 32 data bytes.
func (b *MemoryBlock) Checksum() byte {
	var sum byte
	for _, v := range b.raw {
		sum += v
	}
	return 0xFF - sum
}

func (b *MemoryBlock) Byte(i int) byte       { return b.raw[i] }
func (b *MemoryBlock) SetByte(i int, v byte) { b.raw[i] = v }

// WordBE reads a big-endian word at off. Multi-byte data-flash parameters
// are big-endian, unlike the little-endian command registers.
func (b *MemoryBlock) WordBE(off int) uint16 {
	return uint16(b.raw[off])<<8 | uint16(b.raw[off+1])
}

func (b *MemoryBlock) SetWordBE(off int, v uint16) {
	b.raw[off] = byte(v >> 8)
	b.raw[off+1] = byte(v)
}

// blockSelect unseals access if required, points the chip's data-flash
// window at (class, block) and confirms the selection by reading the
// interface registers back. The select occasionally lands while the gauge
// is busy, so confirmation is retried up to SelectPolls times.
func (d *Device) blockSelect(class, block uint8) error {
	if err := d.ensureUnsealed(); err != nil {
		return err
	}
	for poll := 0; poll < d.cfg.SelectPolls; poll++ {
		if err := d.writeByte(cmdBlockDataControl, 0); err != nil {
			return err
		}
		if err := d.writeByte(cmdDataClass, class); err != nil {
			return err
		}
		if err := d.writeByte(cmdDataBlock, block); err != nil {
			return err
		}

		d.sleep(d.cfg.BlockSettle)

		gotClass, err := d.readByte(cmdDataClass)
		if err != nil {
			return err
		}
		gotBlock, err := d.readByte(cmdDataBlock)
		if err != nil {
			return err
		}
		if gotClass == class && gotBlock == block {
			d.selValid = true
			d.selClass = class
			d.selBlock = block
			return nil
		}
	}
	d.selValid = false
	return ErrSelectFailed
}

// readBlockChecksum returns the chip's checksum for the selected block.
func (d *Device) readBlockChecksum() (byte, error) {
	return d.readByte(cmdBlockDataChecksum)
}

// ReadBlock selects (class, block) and loads the 32 data bytes plus the
// checksum. A checksum mismatch means the chip delivered a torn read; the
// caller should retry from selection.
func (d *Device) ReadBlock(class, block uint8) (*MemoryBlock, error) {
	if err := d.blockSelect(class, block); err != nil {
		return nil, err
	}

	checksum, err := d.readBlockChecksum()
	if err != nil {
		return nil, err
	}

	blk := &MemoryBlock{Class: class, Block: block}
	d.w[0] = cmdBlockData
	if err := d.i2c.Tx(d.addr, d.w[:1], blk.raw[:]); err != nil {
		return nil, err
	}

	if checksum != blk.Checksum() {
		return nil, ErrChecksum
	}
	return blk, nil
}

// WriteBlock writes the block back and verifies the result. The sequence
// is: enter CFGUPDATE, select, write the 32 bytes one register at a time,
// propose the checksum, settle, re-select and read everything back, then
// soft-reset to leave CFGUPDATE. The chip accepts the new contents only if
// the proposed checksum matches what it received.
func (d *Device) WriteBlock(blk *MemoryBlock) error {
	checksum := blk.Checksum()

	if err := d.enterConfigUpdate(); err != nil {
		return err
	}
	if err := d.blockSelect(blk.Class, blk.Block); err != nil {
		return err
	}

	for i := 0; i < BlockSize; i++ {
		if err := d.writeByte(cmdBlockData+byte(i), blk.raw[i]); err != nil {
			return ErrWriteFailed
		}
	}

	// Propose our checksum; the chip commits the block if it agrees.
	if err := d.writeByte(cmdBlockDataChecksum, checksum); err != nil {
		return ErrWriteFailed
	}

	d.sleep(d.cfg.BlockSettle)

	// Readback verification. Re-select so the window is refreshed from
	// flash rather than the staging buffer.
	if err := d.blockSelect(blk.Class, blk.Block); err != nil {
		return err
	}
	chipChecksum, err := d.readBlockChecksum()
	if err != nil {
		return err
	}
	var readback [BlockSize]byte
	d.w[0] = cmdBlockData
	if err := d.i2c.Tx(d.addr, d.w[:1], readback[:]); err != nil {
		return err
	}

	if err := d.SoftReset(); err != nil {
		return err
	}

	if chipChecksum != checksum || readback != blk.raw {
		return ErrChecksum
	}
	return nil
}
