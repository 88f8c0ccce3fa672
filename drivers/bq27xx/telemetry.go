package bq27xx

import "fuelgauge-go/x/mathx"

// Telemetry readouts. Each reading is one word register with a documented
// linear decode; the gauge keeps them continuously updated.

// Temperature registers hold tenths of a kelvin.
const deciKelvinOffset = 2731

// VoltageMilliV returns the measured cell voltage in mV (1:1 scale).
func (d *Device) VoltageMilliV() (int32, error) {
	raw, err := d.readWord(cmdVoltage)
	return int32(raw), err
}

// TemperatureDeciC returns the configured temperature source (internal or
// external NTC) in tenths of a degree Celsius.
func (d *Device) TemperatureDeciC() (int16, error) {
	raw, err := d.readWord(cmdTemperature)
	return int16(int32(raw) - deciKelvinOffset), err
}

// InternalTemperatureDeciC returns the die temperature in deci-Celsius.
func (d *Device) InternalTemperatureDeciC() (int16, error) {
	raw, err := d.readWord(cmdInternalTemperature)
	return int16(int32(raw) - deciKelvinOffset), err
}

// StateOfChargePercent returns the filtered SOC, clamped to 0..100.
func (d *Device) StateOfChargePercent() (uint8, error) {
	raw, err := d.readWord(cmdStateOfCharge)
	return uint8(mathx.Clamp(raw, 0, 100)), err
}

// StateOfHealthPercent returns the SOH estimate (low byte, 0..100).
func (d *Device) StateOfHealthPercent() (uint8, error) {
	raw, err := d.readWord(cmdStateOfHealth)
	return uint8(mathx.Clamp(raw&0xFF, 0, 100)), err
}

// AverageCurrentMilliA returns the signed average current in mA
// (negative while discharging).
func (d *Device) AverageCurrentMilliA() (int16, error) {
	raw, err := d.readWord(cmdAverageCurrent)
	return int16(raw), err
}

// AveragePowerMilliW returns the signed average power in mW.
func (d *Device) AveragePowerMilliW() (int16, error) {
	raw, err := d.readWord(cmdAveragePower)
	return int16(raw), err
}

// RemainingCapacityMilliAh returns the compensated remaining capacity.
func (d *Device) RemainingCapacityMilliAh() (uint16, error) {
	return d.readWord(cmdRemainingCapacity)
}

// FullChargeCapacityMilliAh returns the compensated full-charge capacity.
func (d *Device) FullChargeCapacityMilliAh() (uint16, error) {
	return d.readWord(cmdFullChargeCapacity)
}

// NominalAvailableCapacityMilliAh returns the uncompensated remaining
// capacity.
func (d *Device) NominalAvailableCapacityMilliAh() (uint16, error) {
	return d.readWord(cmdNomAvailCapacity)
}

// FullAvailableCapacityMilliAh returns the uncompensated full capacity.
func (d *Device) FullAvailableCapacityMilliAh() (uint16, error) {
	return d.readWord(cmdFullAvailCapacity)
}
