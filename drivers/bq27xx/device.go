package bq27xx

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Errors returned by the driver. Transport errors from the underlying
// drivers.I2C pass through unwrapped so callers can match on them.
var (
	ErrNotReady     = errors.New("bq27xx: not ready")
	ErrPollTimeout  = errors.New("bq27xx: poll timeout")
	ErrChecksum     = errors.New("bq27xx: checksum mismatch")
	ErrSelectFailed = errors.New("bq27xx: block select not confirmed")
	ErrWriteFailed  = errors.New("bq27xx: block write not confirmed")
	ErrSealed       = errors.New("bq27xx: data flash sealed")
	ErrUnknownChem  = errors.New("bq27xx: unknown chemistry id")
)

// ChipType identifies the gauge variant reported by DEVICE_TYPE.
type ChipType uint8

const (
	ChipUnknown ChipType = iota
	ChipBQ27421
	ChipBQ27426
	ChipBQ27427
)

func chipTypeFrom(code uint16) ChipType {
	switch code {
	case 0x421:
		return ChipBQ27421
	case 0x426:
		return ChipBQ27426
	case 0x427:
		return ChipBQ27427
	default:
		return ChipUnknown
	}
}

func (c ChipType) String() string {
	switch c {
	case ChipBQ27421:
		return "bq27421"
	case ChipBQ27426:
		return "bq27426"
	case ChipBQ27427:
		return "bq27427"
	default:
		return "unknown"
	}
}

// Best-effort mirror of the chip's seal state. The chip owns the truth; the
// mirror is refreshed from CONTROL_STATUS at the start of sequences.
type sealState uint8

const (
	sealUnknown sealState = iota
	sealSealed
	sealUnsealed
)

// Config controls timing, retry bounds and keys. All fields are optional;
// zero values are replaced by datasheet defaults for the BQ27426/427.
// Variants differ in settle behaviour, so none of this is hardcoded.
type Config struct {
	// Address defaults to AddressDefault if zero.
	Address uint16
	// ControlSettle is the delay between writing a query subcommand and
	// reading the control-data register. Default 2 ms.
	ControlSettle time.Duration
	// BlockSettle is the delay after selecting a data-flash block or
	// proposing a checksum. Default 5 ms.
	BlockSettle time.Duration
	// FlagPollInterval/FlagPollRetries bound the Flags polling loop used to
	// gate CFGUPDATE transitions. Defaults 500 ms x 10.
	FlagPollInterval time.Duration
	FlagPollRetries  int
	// SelectPolls bounds the select-confirmation readback. Default 3.
	SelectPolls int
	// UnsealKey is written as two control words to unseal data flash.
	// Default {0x8000, 0x8000} (factory key).
	UnsealKey [2]uint16
	// Sleep is the suspension hook used for every settle interval. Defaults
	// to time.Sleep; tests inject a no-op.
	Sleep func(time.Duration)
}

// DefaultConfig returns the BQ27426/427 datasheet timings.
func DefaultConfig() Config {
	return Config{
		Address:          AddressDefault,
		ControlSettle:    2 * time.Millisecond,
		BlockSettle:      5 * time.Millisecond,
		FlagPollInterval: 500 * time.Millisecond,
		FlagPollRetries:  10,
		SelectPolls:      3,
		UnsealKey:        [2]uint16{0x8000, 0x8000},
	}
}

// Device represents one gauge on an I2C bus. It is not safe for concurrent
// use: the chip has a single selected block and a single control register,
// so callers must serialize whole sequences (see services/gauge).
type Device struct {
	i2c  drivers.I2C
	addr uint16
	cfg  Config

	seal sealState

	// Mirror of the chip-side block selection; invalidated by any reset.
	selValid bool
	selClass uint8
	selBlock uint8

	// Fixed buffers to avoid per-call heap allocations.
	w [3]byte
	r [2]byte
}

// New constructs a Device with the supplied config. It does not touch the
// chip; call Probe to verify communication.
func New(i2c drivers.I2C, cfg Config) *Device {
	def := DefaultConfig()
	if cfg.Address == 0 {
		cfg.Address = def.Address
	}
	if cfg.ControlSettle <= 0 {
		cfg.ControlSettle = def.ControlSettle
	}
	if cfg.BlockSettle <= 0 {
		cfg.BlockSettle = def.BlockSettle
	}
	if cfg.FlagPollInterval <= 0 {
		cfg.FlagPollInterval = def.FlagPollInterval
	}
	if cfg.FlagPollRetries <= 0 {
		cfg.FlagPollRetries = def.FlagPollRetries
	}
	if cfg.SelectPolls <= 0 {
		cfg.SelectPolls = def.SelectPolls
	}
	if cfg.UnsealKey == [2]uint16{} {
		cfg.UnsealKey = def.UnsealKey
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Device{i2c: i2c, addr: cfg.Address, cfg: cfg}
}

func (d *Device) sleep(t time.Duration) { d.cfg.Sleep(t) }

// Address returns the bus address the device was configured with.
func (d *Device) Address() uint16 { return d.addr }

// Probe reads DEVICE_TYPE and applies the BQ27427 CC-calibration errata
// (the factory image may ship a negative CC gain that inverts current
// readings; the sign bit must be cleared once).
func (d *Device) Probe() (ChipType, error) {
	raw, err := d.readControl(subDeviceType)
	if err != nil {
		return ChipUnknown, err
	}
	chip := chipTypeFrom(raw)
	if chip == ChipBQ27427 {
		if err := d.fixCCCalErrata(); err != nil {
			return chip, err
		}
	}
	return chip, nil
}

func (d *Device) fixCCCalErrata() error {
	blk, err := d.ReadBlock(classCCCal, 0)
	if err != nil {
		return err
	}
	if blk.Byte(5)&0x80 == 0 {
		return nil
	}
	blk.SetByte(5, blk.Byte(5)&^0x80)
	return d.WriteBlock(blk)
}

// DeviceType returns the raw DEVICE_TYPE word.
func (d *Device) DeviceType() (uint16, error) { return d.readControl(subDeviceType) }

// FWVersion returns the firmware version word.
func (d *Device) FWVersion() (uint16, error) { return d.readControl(subFWVersion) }

// DMCode returns the data-memory code word.
func (d *Device) DMCode() (uint16, error) { return d.readControl(subDMCode) }

// ControlStatus returns the CONTROL_STATUS word and refreshes the seal
// mirror from its SS bit.
func (d *Device) ControlStatus() (ControlStatus, error) {
	raw, err := d.readControl(subControlStatus)
	if err != nil {
		return 0, err
	}
	st := ControlStatus(raw)
	if st.Has(CtrlSealed) {
		d.seal = sealSealed
	} else {
		d.seal = sealUnsealed
	}
	return st, nil
}

// Flags reads the Flags register.
func (d *Device) Flags() (StatusFlags, error) {
	raw, err := d.readWord(cmdFlags)
	return StatusFlags(raw), err
}

// Reset performs a full reset. Data memory is re-initialized with defaults,
// so the gauge needs reconfiguration afterwards.
func (d *Device) Reset() error {
	err := d.writeControl(subReset)
	d.invalidateChipState()
	return err
}

// SoftReset performs a partial reset (memory preserved) and exits CFGUPDATE.
func (d *Device) SoftReset() error {
	err := d.writeControl(subSoftReset)
	d.selValid = false
	return err
}

// BatteryInsert / BatteryRemove force the battery-detect state when the
// BIE pin comparator is disabled.
func (d *Device) BatteryInsert() error { return d.writeControl(subBatInsert) }
func (d *Device) BatteryRemove() error { return d.writeControl(subBatRemove) }

// ShutdownEnable arms SHUTDOWN; Shutdown then drops the gauge into its
// lowest power state until GPOUT wakes it.
func (d *Device) ShutdownEnable() error { return d.writeControl(subShutdownEnable) }
func (d *Device) Shutdown() error       { return d.writeControl(subShutdown) }

// Seal locks the data-flash interface and updates the mirror.
func (d *Device) Seal() error {
	if err := d.writeControl(subSealed); err != nil {
		return err
	}
	d.seal = sealSealed
	return nil
}

// Unseal writes the two-word key. The mirror is only advanced after the
// chip confirms via CONTROL_STATUS.
func (d *Device) Unseal() error {
	if err := d.writeControl(d.cfg.UnsealKey[0]); err != nil {
		return err
	}
	if err := d.writeControl(d.cfg.UnsealKey[1]); err != nil {
		return err
	}
	st, err := d.ControlStatus()
	if err != nil {
		return err
	}
	if st.Has(CtrlSealed) {
		return ErrSealed
	}
	return nil
}

// ensureUnsealed refreshes the seal mirror when unknown and unseals if
// needed. Called at the start of data-flash write sequences.
func (d *Device) ensureUnsealed() error {
	if d.seal == sealUnknown {
		if _, err := d.ControlStatus(); err != nil {
			return err
		}
	}
	if d.seal == sealSealed {
		return d.Unseal()
	}
	return nil
}

// invalidateChipState forgets everything mirrored from the chip. Used after
// resets and failed sequences; the next sequence re-establishes state.
func (d *Device) invalidateChipState() {
	d.seal = sealUnknown
	d.selValid = false
}
