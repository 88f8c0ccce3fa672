package types

// ---- Common service state (retained) ----

type ServiceState struct {
	Level  string `json:"level"`  // e.g. "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// Info envelope each gauge exposes (retained)
type Info struct {
	SchemaVersion int         `json:"schema_version"`
	Driver        string      `json:"driver"`
	Detail        interface{} `json:"detail,omitempty"`
}

// GaugeInfo appears as Info.Detail on gauge/<name>/info (retained).
type GaugeInfo struct {
	Chip      string `json:"chip"` // "bq27421" | "bq27426" | "bq27427"
	FWVersion uint16 `json:"fw_version"`
	DMCode    uint16 `json:"dm_code"`
	Chem      string `json:"chem"` // active chemistry profile
	Bus       string `json:"bus"`
	Addr      uint16 `json:"addr"`
}

// Retained value published at gauge/<name>/value.
// Fixed-point, small types to suit TinyGo.
type GaugeValue struct {
	MilliV           int32  `json:"mV"`
	TempDeciC        int16  `json:"temp_deciC"` // tenths of °C
	SOCPercent       uint8  `json:"soc"`
	SOHPercent       uint8  `json:"soh"`
	AvgCurrentMilliA int16  `json:"avg_mA"` // negative while discharging
	AvgPowerMilliW   int16  `json:"avg_mW"`
	RemainingMilliAh uint16 `json:"rem_mAh"`
	FullChgMilliAh   uint16 `json:"full_mAh"`
	Flags            uint16 `json:"flags"` // raw Flags() bits
	TS               int64  `json:"ts_ms"`
}

// GaugeEvent is a tagged event payload (gauge/<name>/event/<tag>).
type GaugeEvent struct {
	Tag string `json:"tag"`
	Err string `json:"err,omitempty"`
	TS  int64  `json:"ts_ms"`
}

// ---- Control payloads ----

// verb: "set_capacity"
type SetDesignCapacity struct {
	MilliAh uint16 `json:"mAh"`
}

// verb: "set_chem"
type SetChemistry struct {
	Profile string `json:"profile"` // "a4350" | "b4200" | "c4400"
}

// Generic replies
type OKReply struct {
	OK bool `json:"ok"`
}
type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ---- Public gauge service configuration ----

type GaugeConfig struct {
	Name           string `json:"name"` // logical gauge id, e.g. "main"
	Bus            string `json:"bus"`
	Addr           uint16 `json:"addr"` // 0 => chip default
	PollIntervalMs uint32 `json:"poll_interval_ms"`

	// Optional chemistry profile and design capacity applied at start.
	Chem          string `json:"chem,omitempty"`
	DesignMilliAh uint16 `json:"design_mAh,omitempty"`
}
