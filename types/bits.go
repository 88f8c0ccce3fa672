package types

// ------------------------
// Fuel gauge bitfields (bq27xx)
// ------------------------

// Flags() register (0x06)
type GaugeFlags uint16

const (
	OverTemp        GaugeFlags = 1 << 15
	UnderTemp       GaugeFlags = 1 << 14
	FullCharged     GaugeFlags = 1 << 9
	ChargingAllowed GaugeFlags = 1 << 8
	OCVTaken        GaugeFlags = 1 << 7
	ItPor           GaugeFlags = 1 << 5
	CfgUpMode       GaugeFlags = 1 << 4
	BatDetected     GaugeFlags = 1 << 3
	SocFirstLow     GaugeFlags = 1 << 2
	SocLow          GaugeFlags = 1 << 1
	Discharging     GaugeFlags = 1 << 0
)

// CONTROL_STATUS (subcommand 0x0000)
type GaugeControlStatus uint16

const (
	Shutdown       GaugeControlStatus = 1 << 15
	WatchdogReset  GaugeControlStatus = 1 << 14
	SealedMode     GaugeControlStatus = 1 << 13
	CalMode        GaugeControlStatus = 1 << 12
	CCAuto         GaugeControlStatus = 1 << 11
	BoardCalActive GaugeControlStatus = 1 << 10
	QmaxUpdated    GaugeControlStatus = 1 << 9
	ResUpdated     GaugeControlStatus = 1 << 8
	InitComplete   GaugeControlStatus = 1 << 7
	SleepMode      GaugeControlStatus = 1 << 4
	LdmdConstant   GaugeControlStatus = 1 << 3
	RupDisabled    GaugeControlStatus = 1 << 2
	VokValid       GaugeControlStatus = 1 << 1
	ChemChange     GaugeControlStatus = 1 << 0
)

// Generic pairing of a bit value with a printable name.
// T is a uint16-like type (e.g., GaugeFlags, GaugeControlStatus).
type BitName[T ~uint16] struct {
	Bit  T
	Name string
}

// BitIter is a zero-alloc iterator over set bits in a value, filtered by a table.
// Caller advances with Next(); no callbacks, no closures.
type BitIter[T ~uint16] struct {
	v     uint16
	i     int
	table []BitName[T]
}

// NewBitIter constructs an iterator over set bits present in v that also exist in table.
func NewBitIter[T ~uint16](v T, table []BitName[T]) BitIter[T] {
	return BitIter[T]{v: uint16(v), i: 0, table: table}
}

// Next returns the next SET bit: (name, ok). ok=false when done.
func (it *BitIter[T]) Next() (string, bool) {
	for it.i < len(it.table) {
		e := it.table[it.i]
		it.i++
		if (it.v & uint16(e.Bit)) != 0 {
			return e.Name, true
		}
	}
	return "", false
}

// Reset allows reusing the iterator.
func (it *BitIter[T]) Reset() { it.i = 0 }

// NextAny returns the next table entry: (name, set, ok).
// set indicates whether the bit is present in the value.
func (it *BitIter[T]) NextAny() (string, bool, bool) {
	if it.i >= len(it.table) {
		return "", false, false
	}
	e := it.table[it.i]
	it.i++
	set := (it.v & uint16(e.Bit)) != 0
	return e.Name, set, true
}

// -----------------------------
// Display tables for bitfields
// -----------------------------

// GaugeFlags display (ordering is cosmetic).
var GaugeFlagsTable = [...]BitName[GaugeFlags]{
	{Discharging, "discharging"},
	{SocLow, "soc_low"},
	{SocFirstLow, "soc_first_low"},
	{BatDetected, "bat_detected"},
	{CfgUpMode, "cfgupdate"},
	{ItPor, "it_por"},
	{OCVTaken, "ocv_taken"},
	{ChargingAllowed, "charging_allowed"},
	{FullCharged, "full_charged"},
	{UnderTemp, "under_temp"},
	{OverTemp, "over_temp"},
}

// GaugeControlStatus display.
var GaugeControlStatusTable = [...]BitName[GaugeControlStatus]{
	{ChemChange, "chem_change"},
	{VokValid, "vok_valid"},
	{RupDisabled, "rup_disabled"},
	{LdmdConstant, "ldmd_constant"},
	{SleepMode, "sleep"},
	{InitComplete, "init_complete"},
	{ResUpdated, "res_updated"},
	{QmaxUpdated, "qmax_updated"},
	{BoardCalActive, "board_cal"},
	{CCAuto, "cc_auto"},
	{SealedMode, "sealed"},
	{CalMode, "cal_mode"},
	{Shutdown, "shutdown_pending"},
	{WatchdogReset, "watchdog_reset"},
}
