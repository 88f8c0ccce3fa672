package bq27xx

// I2C word operations (little-endian: LOW then HIGH). The chip dislikes
// long transactions, so everything is built from short writes and
// write+repeated-start reads. drivers.I2C.Tx must not release the bus
// between the write and read halves.

func (d *Device) readWord(cmd byte) (uint16, error) {
	d.w[0] = cmd
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

func (d *Device) readByte(cmd byte) (byte, error) {
	d.w[0] = cmd
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeWord(cmd byte, val uint16) error {
	d.w[0] = cmd
	d.w[1] = byte(val)      // low
	d.w[2] = byte(val >> 8) // high
	return d.i2c.Tx(d.addr, d.w[:3], nil)
}

func (d *Device) writeByte(cmd byte, val byte) error {
	d.w[0] = cmd
	d.w[1] = val
	return d.i2c.Tx(d.addr, d.w[:2], nil)
}
