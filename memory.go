// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// A MemBlock is an addressable array of 2^addrwidth words of bitwidth
// bits, built from memory read and write port nets. Reads are
// asynchronous: the read data is recomputed every evaluation with no
// latency. Writes are synchronous: a value written in one cycle is
// observed starting the next cycle, and a write port with a false enable
// leaves the contents unchanged.
//
// A read-only memory (see ROM and ROMFunc) has its contents fixed at
// construction and rejects write ports.
//
type MemBlock struct {
	block     *Block
	id        int
	name      string
	bitwidth  int
	addrwidth int

	rom   []*big.Int          // literal read-only contents
	romFn func(uint64) uint64 // computed read-only contents

	readPorts  []*Net
	writePorts []*Net
}

// Mem creates a read/write memory with the given word and address widths.
// An empty name allocates a temporary name. Address spaces beyond 2^64
// words are rejected.
//
func (b *Block) Mem(bitwidth, addrwidth int, name string) *MemBlock {
	return b.newMem(bitwidth, addrwidth, name, nil, nil)
}

// ROM creates a read-only memory whose contents are the given literal
// words, addresses beyond len(data) reading as 0. Each word must fit in
// bitwidth bits.
//
func (b *Block) ROM(bitwidth, addrwidth int, name string, data []uint64) *MemBlock {
	if len(data) > 0 && uint64(len(data)-1)>>uint(addrwidth) != 0 {
		panic(errors.Errorf("rtl: ROM %q data has %d words, address bus is %d bits",
			name, len(data), addrwidth))
	}
	rom := make([]*big.Int, len(data))
	for addr, v := range data {
		rom[addr] = new(big.Int).SetUint64(v)
	}
	return b.newMem(bitwidth, addrwidth, name, rom, nil)
}

// ROMFunc creates a read-only memory whose contents are f(addr). f must be
// a pure function of the address; it is evaluated on demand during
// simulation and its results are truncated to bitwidth bits.
//
func (b *Block) ROMFunc(bitwidth, addrwidth int, name string, f func(addr uint64) uint64) *MemBlock {
	if f == nil {
		panic(errors.Errorf("rtl: ROM %q has a nil contents function", name))
	}
	return b.newMem(bitwidth, addrwidth, name, nil, f)
}

func (b *Block) newMem(bitwidth, addrwidth int, name string, rom []*big.Int, romFn func(uint64) uint64) *MemBlock {
	if bitwidth <= 0 {
		panic(errors.Errorf("rtl: memory bitwidth must be >= 1, got %d", bitwidth))
	}
	if addrwidth <= 0 || addrwidth > 64 {
		panic(errors.Errorf("rtl: memory addrwidth must be in [1,64], got %d", addrwidth))
	}
	if name == "" {
		b.nameCount++
		name = "mem" + strconv.Itoa(b.nameCount)
	} else if b.memByName[name] {
		panic(errors.Errorf("rtl: duplicate memory name %q", name))
	}
	for addr, v := range rom {
		if v.BitLen() > bitwidth {
			panic(errors.Errorf("rtl: ROM %q word at address %d does not fit in %d bits", name, addr, bitwidth))
		}
	}
	b.memCount++
	m := &MemBlock{
		block:     b,
		id:        b.memCount,
		name:      name,
		bitwidth:  bitwidth,
		addrwidth: addrwidth,
		rom:       rom,
		romFn:     romFn,
	}
	b.mems = append(b.mems, m)
	b.memByName[name] = true
	return m
}

// Name returns the memory's name.
func (m *MemBlock) Name() string { return m.name }

// BitWidth returns the width of one memory word.
func (m *MemBlock) BitWidth() int { return m.bitwidth }

// AddrWidth returns the width of the address bus.
func (m *MemBlock) AddrWidth() int { return m.addrwidth }

// IsROM reports whether the memory is read-only.
func (m *MemBlock) IsROM() bool { return m.rom != nil || m.romFn != nil }

// Read builds an asynchronous read port and returns its data wire:
// data = mem[addr], recomputed every evaluation. addr narrower than the
// address bus is zero-extended; wider is an error.
//
func (m *MemBlock) Read(addr *Wire) *Wire {
	addr = m.addrWire(addr)
	data := m.block.Wire(m.bitwidth, "")
	m.block.addNet(&Net{Op: OpMemRead, Mem: m, Args: []*Wire{addr}, Dests: []*Wire{data}})
	return data
}

// Write builds a synchronous write port: when enable holds 1 at the clock
// edge, mem[addr] adopts data for the following cycles. A nil enable
// writes unconditionally. Writes by ports declared later win address
// collisions within one cycle.
//
func (m *MemBlock) Write(addr, data, enable *Wire) {
	if m.block.condOpen {
		panic(errors.Errorf("rtl: unconditional write to %q inside a conditional scope", m.name))
	}
	addr, data, enable = m.writePort(addr, data, enable)
	m.block.addNet(&Net{Op: OpMemWrite, Mem: m, Args: []*Wire{addr, data, enable}})
}

func (m *MemBlock) writePort(addr, data, enable *Wire) (*Wire, *Wire, *Wire) {
	if m.IsROM() {
		panic(errors.Errorf("rtl: ROM %q is read-only", m.name))
	}
	addr = m.addrWire(addr)
	sameBlock(addr, data)
	if data.mustWidth() > m.bitwidth {
		panic(errors.Errorf("rtl: write data %q is %d bits, memory %q bitwidth is %d",
			data.name, data.width, m.name, m.bitwidth))
	}
	data = data.coerce(m.bitwidth)
	if enable == nil {
		enable = m.block.Const(1, 1)
	} else if enable.mustWidth() != 1 {
		panic(errors.Errorf("rtl: write enable %q must be a single bit", enable.name))
	}
	sameBlock(addr, enable)
	return addr, data, enable
}

func (m *MemBlock) addrWire(addr *Wire) *Wire {
	if addr.block != m.block {
		panic(errors.Errorf("rtl: address %q belongs to a different block than memory %q", addr.name, m.name))
	}
	if addr.mustWidth() > m.addrwidth {
		panic(errors.Errorf("rtl: address %q is %d bits, memory %q addrwidth is %d",
			addr.name, addr.width, m.name, m.addrwidth))
	}
	return addr.coerce(m.addrwidth)
}
