// Package bq27xxsim provides an in-memory BQ27426/427 gauge implementing
// drivers.I2C. It models the control subcommand latch, the data-flash
// window with its checksum handshake, CFGUPDATE entry latency and the seal
// state machine, plus fault injection hooks for exercising the driver's
// failure paths. Used by the driver tests, the gauge service tests and
// cmd/gauge-selftest.
package bq27xxsim

import (
	"errors"
	"sync"
)

// Address is the simulated chip's bus address.
const Address = 0x55

const blockSize = 32

// Command/subcommand numbers mirrored from the datasheet. The simulator
// keeps its own copy so it stays an independent check on the driver.
const (
	cmdControl           = 0x00
	cmdFlags             = 0x06
	cmdDataClass         = 0x3E
	cmdDataBlock         = 0x3F
	cmdBlockData         = 0x40
	cmdBlockDataChecksum = 0x60
	cmdBlockDataControl  = 0x61

	subControlStatus = 0x0000
	subDeviceType    = 0x0001
	subFWVersion     = 0x0002
	subChemID        = 0x0008
	subSetCfgUpdate  = 0x0013
	subSealed        = 0x0020
	subChemA         = 0x0030
	subChemB         = 0x0031
	subChemC         = 0x0032
	subReset         = 0x0041
	subSoftReset     = 0x0042

	unsealKeyWord = 0x8000

	flagBatDet    = 1 << 3
	flagCfgUpMode = 1 << 4

	ctrlInitComp = 1 << 7
	ctrlSealed   = 1 << 13
)

var (
	ErrNack        = errors.New("bq27xxsim: address nack")
	ErrBadRequest  = errors.New("bq27xxsim: malformed transaction")
	ErrSealedWrite = errors.New("bq27xxsim: write while sealed")
)

type blockKey struct {
	class uint8
	block uint8
}

// Gauge is one simulated chip. Safe for concurrent use.
type Gauge struct {
	mu sync.Mutex

	addr uint16

	regs  map[byte]uint16 // standard command words
	flash map[blockKey][blockSize]byte

	chemID   uint16
	devType  uint16
	fwVer    uint16
	sealed   bool
	unsealN  int
	cfgUp    bool
	cfgDelay int // flags reads remaining before CFGUPMODE shows up

	dataClass byte
	dataBlock byte
	window    [blockSize]byte // staging window for the selected block

	ctrlResult uint16

	// Fault injection. All are consumed as they fire.
	failNextTx    error
	tornReads     int // reads of 0x60 that return a wrong checksum
	selectGlitch  int // selects that leave the interface registers stale
	corruptCommit bool

	// CfgUpdatePolls makes CFGUPDATE entry visible only after N reads of
	// the Flags register (0 = immediate).
	CfgUpdatePolls int

	readCounts map[byte]int
}

// New returns a gauge with plausible defaults: a BQ27426 reporting 3.7 V,
// 25.0 °C, 87 % SOC and a 1340 mAh design capacity, unsealed.
func New() *Gauge {
	g := &Gauge{
		addr:    Address,
		devType: 0x426,
		fwVer:   0x0109,
		chemID:  0x1202,
		regs: map[byte]uint16{
			0x02: 2981, // temperature, 0.1 K
			0x04: 3700, // voltage, mV
			0x06: flagBatDet,
			0x08: 1100,   // nominal available capacity
			0x0A: 1320,   // full available capacity
			0x0C: 1166,   // remaining capacity
			0x0E: 1340,   // full charge capacity
			0x10: 0xFF88, // average current: -120 mA
			0x18: 0xFE4A, // average power: -438 mW
			0x1C: 87,     // state of charge
			0x1E: 3012,   // internal temperature
			0x20: 99,     // state of health
		},
		flash:      map[blockKey][blockSize]byte{},
		readCounts: map[byte]int{},
	}
	var state [blockSize]byte
	state[6], state[7] = 0x05, 0x3C // design capacity 1340, big-endian
	g.flash[blockKey{82, 0}] = state
	g.flash[blockKey{105, 0}] = [blockSize]byte{}
	return g
}

// --- scripting hooks ---

func (g *Gauge) SetRegister(cmd byte, v uint16) {
	g.mu.Lock()
	g.regs[cmd] = v
	g.mu.Unlock()
}

func (g *Gauge) SetDeviceType(v uint16) { g.mu.Lock(); g.devType = v; g.mu.Unlock() }

func (g *Gauge) SetSealed(sealed bool) {
	g.mu.Lock()
	g.sealed = sealed
	g.unsealN = 0
	g.mu.Unlock()
}

func (g *Gauge) Sealed() bool { g.mu.Lock(); defer g.mu.Unlock(); return g.sealed }

func (g *Gauge) InCfgUpdate() bool { g.mu.Lock(); defer g.mu.Unlock(); return g.cfgUp }

func (g *Gauge) ChemID() uint16 { g.mu.Lock(); defer g.mu.Unlock(); return g.chemID }

// FlashBlock returns a copy of the committed block contents.
func (g *Gauge) FlashBlock(class, block uint8) [blockSize]byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flash[blockKey{class, block}]
}

// SetFlashBlock replaces the committed block contents.
func (g *Gauge) SetFlashBlock(class, block uint8, data [blockSize]byte) {
	g.mu.Lock()
	g.flash[blockKey{class, block}] = data
	g.mu.Unlock()
}

// FailNextTx makes the next transaction return err.
func (g *Gauge) FailNextTx(err error) { g.mu.Lock(); g.failNextTx = err; g.mu.Unlock() }

// TearNextReads makes the next n checksum reads return a wrong value,
// as a torn/interrupted block read would.
func (g *Gauge) TearNextReads(n int) { g.mu.Lock(); g.tornReads = n; g.mu.Unlock() }

// GlitchNextSelects makes the next n block selects leave the interface
// registers stale, as a busy gauge does.
func (g *Gauge) GlitchNextSelects(n int) { g.mu.Lock(); g.selectGlitch = n; g.mu.Unlock() }

// CorruptNextCommit flips one bit of the committed data on the next
// successful block write.
func (g *Gauge) CorruptNextCommit() { g.mu.Lock(); g.corruptCommit = true; g.mu.Unlock() }

// ReadCount reports how many register reads targeted cmd.
func (g *Gauge) ReadCount(cmd byte) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readCounts[cmd]
}

// --- drivers.I2C ---

func (g *Gauge) Tx(addr uint16, w, r []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.failNextTx; err != nil {
		g.failNextTx = nil
		return err
	}
	if addr != g.addr {
		return ErrNack
	}

	switch {
	case len(w) == 3 && w[0] == cmdControl && len(r) == 0:
		return g.control(uint16(w[1]) | uint16(w[2])<<8)

	case len(w) == 2 && len(r) == 0:
		return g.writeRegister(w[0], w[1])

	case len(w) == 1 && len(r) > 0:
		return g.readRegisters(w[0], r)

	default:
		return ErrBadRequest
	}
}

func (g *Gauge) control(sub uint16) error {
	if g.sealed && sub == unsealKeyWord {
		g.unsealN++
		if g.unsealN >= 2 {
			g.sealed = false
			g.unsealN = 0
		}
		return nil
	}
	g.unsealN = 0

	switch sub {
	case subControlStatus:
		g.ctrlResult = ctrlInitComp
		if g.sealed {
			g.ctrlResult |= ctrlSealed
		}
	case subDeviceType:
		g.ctrlResult = g.devType
	case subFWVersion:
		g.ctrlResult = g.fwVer
	case subChemID:
		g.ctrlResult = g.chemID
	case subSetCfgUpdate:
		if g.CfgUpdatePolls > 0 {
			g.cfgDelay = g.CfgUpdatePolls
		} else {
			g.cfgUp = true
		}
	case subSealed:
		g.sealed = true
	case subChemA:
		if g.cfgUp {
			g.chemID = 0x3230
		}
	case subChemB:
		if g.cfgUp {
			g.chemID = 0x1202
		}
	case subChemC:
		if g.cfgUp {
			g.chemID = 0x3142
		}
	case subReset:
		g.cfgUp = false
		g.cfgDelay = 0
		g.sealed = true
	case subSoftReset:
		g.cfgUp = false
		g.cfgDelay = 0
	default:
		g.ctrlResult = 0
	}
	return nil
}

func (g *Gauge) writeRegister(cmd, val byte) error {
	switch {
	case cmd == cmdBlockDataControl:
		if g.sealed {
			return ErrSealedWrite
		}
		return nil

	case cmd == cmdDataClass:
		if g.sealed {
			return ErrSealedWrite
		}
		if g.selectGlitch > 0 {
			return nil // stale: class register keeps its old value
		}
		g.dataClass = val
		return nil

	case cmd == cmdDataBlock:
		if g.sealed {
			return ErrSealedWrite
		}
		if g.selectGlitch > 0 {
			g.selectGlitch--
			return nil
		}
		g.dataBlock = val
		g.window = g.flash[blockKey{g.dataClass, g.dataBlock}]
		return nil

	case cmd >= cmdBlockData && cmd < cmdBlockData+blockSize:
		if g.sealed || !g.cfgUp {
			return ErrSealedWrite
		}
		g.window[cmd-cmdBlockData] = val
		return nil

	case cmd == cmdBlockDataChecksum:
		if g.sealed || !g.cfgUp {
			return ErrSealedWrite
		}
		// The chip commits the window only if the proposed checksum
		// matches what it received.
		if val == checksum(g.window) {
			committed := g.window
			if g.corruptCommit {
				committed[3] ^= 0x40
				g.corruptCommit = false
			}
			g.flash[blockKey{g.dataClass, g.dataBlock}] = committed
		}
		return nil

	default:
		return ErrBadRequest
	}
}

func (g *Gauge) readRegisters(cmd byte, r []byte) error {
	g.readCounts[cmd]++

	switch {
	case cmd == cmdControl && len(r) == 2:
		r[0] = byte(g.ctrlResult)
		r[1] = byte(g.ctrlResult >> 8)
		return nil

	case cmd == cmdDataClass && len(r) == 1:
		r[0] = g.dataClass
		return nil

	case cmd == cmdDataBlock && len(r) == 1:
		r[0] = g.dataBlock
		return nil

	case cmd == cmdBlockDataChecksum && len(r) == 1:
		sum := checksum(g.flash[blockKey{g.dataClass, g.dataBlock}])
		if g.tornReads > 0 {
			g.tornReads--
			sum ^= 0xFF
		}
		r[0] = sum
		return nil

	case cmd >= cmdBlockData && int(cmd)+len(r) <= cmdBlockData+blockSize:
		blk := g.flash[blockKey{g.dataClass, g.dataBlock}]
		copy(r, blk[cmd-cmdBlockData:])
		return nil

	case cmd == cmdFlags && len(r) == 2:
		if g.cfgDelay > 0 {
			g.cfgDelay--
			if g.cfgDelay == 0 {
				g.cfgUp = true
			}
		}
		v := g.regs[cmdFlags]
		if g.cfgUp {
			v |= flagCfgUpMode
		}
		r[0] = byte(v)
		r[1] = byte(v >> 8)
		return nil

	case len(r) == 2:
		v, ok := g.regs[cmd]
		if !ok {
			return ErrBadRequest
		}
		r[0] = byte(v)
		r[1] = byte(v >> 8)
		return nil

	default:
		return ErrBadRequest
	}
}

func checksum(b [blockSize]byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return 0xFF - sum
}
