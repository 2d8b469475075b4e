// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"strconv"
	"strings"
)

// An Op identifies one primitive netlist operation. The op set is closed:
// every higher-level operator lowers onto it.
//
type Op byte

// Primitive operations.
//
//	OpConnect   directional wire, no logic function
//	OpNot       bitwise complement
//	OpAnd, OpOr, OpXor
//	            bitwise logic, both args the same width
//	OpAdd, OpSub
//	            unsigned arithmetic, result one bit wider than the args
//	OpMul       unsigned multiply, result twice as wide as the args
//	OpLT, OpGT, OpEQ
//	            unsigned comparison, single-bit result
//	OpMux       2-way multiplexer: args are (sel, a, b); sel==0 picks a
//	OpConcat    concatenation, first arg in the most significant position
//	OpSelect    bit selection by the per-net index list, bit 0 is the LSB
//	OpRegister  register clock input: dest adopts the arg at the clock edge
//	OpMemRead   asynchronous memory read port: dest = mem[arg]
//	OpMemWrite  synchronous memory write port: args are (addr, data, enable)
//
const (
	OpConnect  Op = 'w'
	OpNot      Op = '~'
	OpAnd      Op = '&'
	OpOr       Op = '|'
	OpXor      Op = '^'
	OpAdd      Op = '+'
	OpSub      Op = '-'
	OpMul      Op = '*'
	OpLT       Op = '<'
	OpGT       Op = '>'
	OpEQ       Op = '='
	OpMux      Op = 'x'
	OpConcat   Op = 'c'
	OpSelect   Op = 's'
	OpRegister Op = 'r'
	OpMemRead  Op = 'm'
	OpMemWrite Op = '@'
)

func allOps() map[Op]bool {
	m := make(map[Op]bool)
	for _, op := range []Op{
		OpConnect, OpNot, OpAnd, OpOr, OpXor, OpAdd, OpSub, OpMul,
		OpLT, OpGT, OpEQ, OpMux, OpConcat, OpSelect, OpRegister,
		OpMemRead, OpMemWrite,
	} {
		m[op] = true
	}
	return m
}

// A Net is one primitive operation node in the netlist: an op tag,
// op-specific parameters, ordered argument wires and ordered destination
// wires. Nets are created once and never mutated in place.
//
type Net struct {
	Op    Op
	Args  []*Wire
	Dests []*Wire

	// Sel lists the selected bit indices for OpSelect nets.
	Sel []int
	// Mem is the memory accessed by OpMemRead and OpMemWrite nets.
	Mem *MemBlock
}

// combinational reports whether the net computes a value during the
// evaluation phase of a cycle. Register clock inputs and memory write
// ports only act at the commit point.
func (n *Net) combinational() bool {
	return n.Op != OpRegister && n.Op != OpMemWrite
}

// String renders the net one-line, destinations first:
//
//	sum/2W <-- + -- a/1I, b/1I
//
func (n *Net) String() string {
	var sb strings.Builder
	for i, d := range n.Dests {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.String())
	}
	sb.WriteString(" <-- ")
	sb.WriteByte(byte(n.Op))
	sb.WriteString(" -- ")
	for i, a := range n.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	if n.Op == OpSelect {
		sb.WriteString(" (")
		for i, s := range n.Sel {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(s))
		}
		sb.WriteByte(')')
	}
	if n.Mem != nil {
		sb.WriteString(" (")
		sb.WriteString(n.Mem.Name())
		sb.WriteByte(')')
	}
	return sb.String()
}
