// Package bq27xx provides constants for the command addresses, control
// subcommands and data-flash layout of the TI BQ27426/BQ27427 fuel gauges.
package bq27xx

const (
	// 7-bit I2C address (fixed for the whole family).
	AddressDefault = 0x55

	// --- Standard commands (16-bit word registers, little-endian) ---

	cmdControl             = 0x00
	cmdTemperature         = 0x02 // 0.1 K
	cmdVoltage             = 0x04 // mV
	cmdFlags               = 0x06
	cmdNomAvailCapacity    = 0x08 // mAh
	cmdFullAvailCapacity   = 0x0A // mAh
	cmdRemainingCapacity   = 0x0C // mAh
	cmdFullChargeCapacity  = 0x0E // mAh
	cmdAverageCurrent      = 0x10 // signed mA
	cmdAveragePower        = 0x18 // signed mW
	cmdStateOfCharge       = 0x1C // percent
	cmdInternalTemperature = 0x1E // 0.1 K
	cmdStateOfHealth       = 0x20 // percent in the low byte

	// --- Extended commands (data-flash interface) ---

	cmdDataClass         = 0x3E
	cmdDataBlock         = 0x3F
	cmdBlockData         = 0x40 // 32 bytes, 0x40..0x5F
	cmdBlockDataChecksum = 0x60
	cmdBlockDataControl  = 0x61
)

// Control subcommands, written as a word to cmdControl. Queries are read
// back from the same register pair after a settle interval.
const (
	subControlStatus  = 0x0000
	subDeviceType     = 0x0001
	subFWVersion      = 0x0002
	subDMCode         = 0x0004
	subPrevMACWrite   = 0x0007
	subChemID         = 0x0008
	subBatInsert      = 0x000C
	subBatRemove      = 0x000D
	subSetCfgUpdate   = 0x0013
	subSmoothSync     = 0x0019
	subShutdownEnable = 0x001B
	subShutdown       = 0x001C
	subSealed         = 0x0020
	subPulseSOCInt    = 0x0023
	subChemA          = 0x0030
	subChemB          = 0x0031
	subChemC          = 0x0032
	subReset          = 0x0041
	subSoftReset      = 0x0042
)

// Data-flash subclasses.
const (
	classSafety            = 2
	classChargeTermination = 36
	classDischarge         = 49
	classRegisters         = 64
	classITCfg             = 80
	classCurrentThresholds = 81
	classState             = 82
	classRA0RAM            = 89
	classData              = 104
	classCCCal             = 105
	classCurrent           = 107
	classChemData          = 109
	classCodes             = 112
)

// Design capacity lives in the State subclass, block 0, big-endian.
const (
	designCapacityOffset = 6
)

// StatusFlags is the contents of the Flags register (0x06).
type StatusFlags uint16

const (
	FlagDSG        StatusFlags = 1 << 0 // discharging
	FlagSOCF       StatusFlags = 1 << 1 // SOC final threshold
	FlagSOC1       StatusFlags = 1 << 2 // SOC first threshold
	FlagBatDet     StatusFlags = 1 << 3 // battery detected
	FlagCfgUpMode  StatusFlags = 1 << 4 // CFGUPDATE mode active
	FlagITPOR      StatusFlags = 1 << 5 // power-on reset, config lost
	FlagDODCorrect StatusFlags = 1 << 6
	FlagOCVTaken   StatusFlags = 1 << 7
	FlagCHG        StatusFlags = 1 << 8 // charging allowed
	FlagFC         StatusFlags = 1 << 9 // full charge
	FlagUT         StatusFlags = 1 << 14
	FlagOT         StatusFlags = 1 << 15
)

func (f StatusFlags) Has(mask StatusFlags) bool { return f&mask != 0 }

// ControlStatus is the result of the CONTROL_STATUS query.
type ControlStatus uint16

const (
	CtrlChemChange ControlStatus = 1 << 0
	CtrlVOK        ControlStatus = 1 << 1
	CtrlRupDis     ControlStatus = 1 << 2
	CtrlLDMD       ControlStatus = 1 << 3
	CtrlSleep      ControlStatus = 1 << 4
	CtrlInitComp   ControlStatus = 1 << 7
	CtrlResUp      ControlStatus = 1 << 8
	CtrlQMaxUp     ControlStatus = 1 << 9
	CtrlBCA        ControlStatus = 1 << 10
	CtrlCCA        ControlStatus = 1 << 11
	CtrlCalMode    ControlStatus = 1 << 12
	CtrlSealed     ControlStatus = 1 << 13 // SS: data flash is sealed
	CtrlWDReset    ControlStatus = 1 << 14
	CtrlShutdownEn ControlStatus = 1 << 15
)

func (s ControlStatus) Has(mask ControlStatus) bool { return s&mask != 0 }
