// gauge/gauge.go
package gauge

import (
	"context"
	"time"

	"fuelgauge-go/bus"
	"fuelgauge-go/drivers/bq27xx"
	"fuelgauge-go/errcode"
	"fuelgauge-go/types"

	"tinygo.org/x/drivers"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

type Config struct {
	Name         string // logical gauge id, e.g. "main"
	Bus          string // reported in info, e.g. "i2c0"
	PollInterval time.Duration

	// Optional chemistry profile ("a4350" | "b4200" | "c4400") and design
	// capacity applied before the first sample.
	Chem          string
	DesignMilliAh uint16

	// Driver carries low-level overrides (address, settle times, sleep hook).
	Driver bq27xx.Config
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "main"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

// Run owns one gauge for the lifetime of ctx and blocks until it is done.
// A single goroutine performs every chip transaction, so multi-step
// data-flash sequences always run to completion before the next control is
// served.
//
// Topics, relative to gauge/<name>:
//
//	state            retained ServiceState
//	info             retained Info{Detail: GaugeInfo}
//	value            retained GaugeValue, republished every poll
//	event/<tag>      GaugeEvent faults
//	control/<verb>   read | set_capacity | set_chem | reset | soft_reset |
//	                 seal | unseal — replies are OKReply / ErrorReply
func Run(ctx context.Context, conn *bus.Connection, i2c drivers.I2C, cfg Config) error {
	cfg.setDefaults()
	s := &service{
		conn: conn,
		cfg:  cfg,
		dev:  bq27xx.New(i2c, cfg.Driver),
	}
	return s.run(ctx)
}

type service struct {
	conn *bus.Connection
	cfg  Config
	dev  *bq27xx.Device
	chip bq27xx.ChipType
}

func (s *service) topic(parts ...bus.Token) bus.Topic {
	t := bus.Topic{"gauge", s.cfg.Name}
	return append(t, parts...)
}

func (s *service) run(ctx context.Context) error {
	s.publishState("idle", "probing")

	chip, err := s.dev.Probe()
	if err != nil {
		s.emitErr("probe_failed", err)
		s.publishState("error", string(errcode.MapDriverErr(err)))
		return err
	}
	if chip == bq27xx.ChipUnknown {
		s.emitErr("probe_failed", errcode.UnknownChip)
		s.publishState("error", string(errcode.UnknownChip))
		return errcode.UnknownChip
	}
	s.chip = chip

	if s.cfg.Chem != "" {
		if err := s.applyChem(s.cfg.Chem); err != nil {
			s.emitErr("apply_chem_failed", err)
		}
	}
	if s.cfg.DesignMilliAh != 0 {
		if err := s.dev.SetDesignCapacityMilliAh(s.cfg.DesignMilliAh); err != nil {
			s.emitErr("apply_capacity_failed", err)
		}
	}

	ctlSub := s.conn.Subscribe(s.topic("control", bus.WildcardOne))
	defer s.conn.Unsubscribe(ctlSub)

	s.publishInfo()
	s.publishState("ready", "ok")

	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	s.sample()
	for {
		select {
		case <-ctx.Done():
			s.publishState("stopped", "ctx_done")
			return nil
		case <-tick.C:
			s.sample()
		case msg, ok := <-ctlSub.Channel():
			if !ok {
				s.publishState("error", "control_subscription_closed")
				return nil
			}
			s.handleControl(msg)
		}
	}
}

// -----------------------------------------------------------------------------
// Sampling
// -----------------------------------------------------------------------------

func (s *service) sample() {
	v, err := s.readAll()
	if err != nil {
		s.emitErr("sample_failed", err)
		return
	}
	v.TS = time.Now().UnixMilli()
	s.conn.Publish(s.conn.NewMessage(s.topic("value"), v, true))
}

func (s *service) readAll() (types.GaugeValue, error) {
	var v types.GaugeValue
	var err error

	if v.MilliV, err = s.dev.VoltageMilliV(); err != nil {
		return v, err
	}
	if v.TempDeciC, err = s.dev.TemperatureDeciC(); err != nil {
		return v, err
	}
	if v.SOCPercent, err = s.dev.StateOfChargePercent(); err != nil {
		return v, err
	}
	if v.SOHPercent, err = s.dev.StateOfHealthPercent(); err != nil {
		return v, err
	}
	if v.AvgCurrentMilliA, err = s.dev.AverageCurrentMilliA(); err != nil {
		return v, err
	}
	if v.AvgPowerMilliW, err = s.dev.AveragePowerMilliW(); err != nil {
		return v, err
	}
	if v.RemainingMilliAh, err = s.dev.RemainingCapacityMilliAh(); err != nil {
		return v, err
	}
	if v.FullChgMilliAh, err = s.dev.FullChargeCapacityMilliAh(); err != nil {
		return v, err
	}
	f, err := s.dev.Flags()
	if err != nil {
		return v, err
	}
	v.Flags = uint16(f)
	return v, nil
}

// -----------------------------------------------------------------------------
// Controls
// -----------------------------------------------------------------------------

func (s *service) handleControl(msg *bus.Message) {
	verb, _ := msg.Topic[len(msg.Topic)-1].(string)

	var code errcode.Code
	switch verb {
	case "read":
		v, err := s.readAll()
		if err != nil {
			s.emitErr("sample_failed", err)
			code = errcode.MapDriverErr(err)
		} else {
			v.TS = time.Now().UnixMilli()
			s.conn.Publish(s.conn.NewMessage(s.topic("value"), v, true))
			code = errcode.OK
		}
	case "set_capacity":
		code = s.ctlSetCapacity(msg.Payload)
	case "set_chem":
		code = s.ctlSetChem(msg.Payload)
	case "reset":
		code = errcode.MapDriverErr(s.dev.Reset())
	case "soft_reset":
		code = errcode.MapDriverErr(s.dev.SoftReset())
	case "seal":
		code = errcode.MapDriverErr(s.dev.Seal())
	case "unseal":
		code = errcode.MapDriverErr(s.dev.Unseal())
	default:
		code = errcode.Unsupported
	}

	if code == errcode.OK {
		s.conn.Reply(msg, types.OKReply{OK: true}, false)
	} else {
		s.conn.Reply(msg, types.ErrorReply{OK: false, Error: string(code)}, false)
	}
}

func (s *service) ctlSetCapacity(payload any) errcode.Code {
	var p types.SetDesignCapacity
	switch v := payload.(type) {
	case types.SetDesignCapacity:
		p = v
	case *types.SetDesignCapacity:
		p = *v
	default:
		return errcode.InvalidPayload
	}
	if p.MilliAh == 0 {
		return errcode.InvalidParams
	}
	if err := s.dev.SetDesignCapacityMilliAh(p.MilliAh); err != nil {
		s.emitErr("set_capacity_failed", err)
		return errcode.MapDriverErr(err)
	}
	return errcode.OK
}

func (s *service) ctlSetChem(payload any) errcode.Code {
	var p types.SetChemistry
	switch v := payload.(type) {
	case types.SetChemistry:
		p = v
	case *types.SetChemistry:
		p = *v
	default:
		return errcode.InvalidPayload
	}
	if err := s.applyChem(p.Profile); err != nil {
		s.emitErr("set_chem_failed", err)
		return errcode.MapDriverErr(err)
	}
	s.publishInfo() // chem is part of the retained info
	return errcode.OK
}

func (s *service) applyChem(profile string) error {
	id, ok := chemFromProfile(profile)
	if !ok {
		return bq27xx.ErrUnknownChem
	}
	return s.dev.SetChemID(id)
}

func chemFromProfile(profile string) (bq27xx.ChemID, bool) {
	switch profile {
	case "a4350":
		return bq27xx.ChemIDA4350, true
	case "b4200":
		return bq27xx.ChemIDB4200, true
	case "c4400":
		return bq27xx.ChemIDC4400, true
	default:
		return bq27xx.ChemIDUnknown, false
	}
}

// -----------------------------------------------------------------------------
// Publishing helpers
// -----------------------------------------------------------------------------

func (s *service) publishInfo() {
	info := types.GaugeInfo{
		Chip: s.chip.String(),
		Bus:  s.cfg.Bus,
		Addr: s.dev.Address(),
	}
	if fw, err := s.dev.FWVersion(); err == nil {
		info.FWVersion = fw
	}
	if dm, err := s.dev.DMCode(); err == nil {
		info.DMCode = dm
	}
	if id, err := s.dev.ChemID(); err == nil {
		info.Chem = id.String()
	}
	env := types.Info{SchemaVersion: 1, Driver: "bq27xx", Detail: info}
	s.conn.Publish(s.conn.NewMessage(s.topic("info"), env, true))
}

func (s *service) publishState(level, status string) {
	st := types.ServiceState{Level: level, Status: status, TS: time.Now().UnixMilli()}
	s.conn.Publish(s.conn.NewMessage(s.topic("state"), st, true))
}

func (s *service) emitErr(tag string, err error) {
	code := errcode.Of(err)
	if code == errcode.Error {
		code = errcode.MapDriverErr(err)
	}
	ev := types.GaugeEvent{Tag: tag, Err: string(code), TS: time.Now().UnixMilli()}
	s.conn.Publish(s.conn.NewMessage(s.topic("event", tag), ev, false))
}
