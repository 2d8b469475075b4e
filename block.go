// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// A Block owns the complete set of wires and nets for one design. It is
// the sole point of graph mutation: wires are registered by the Block
// constructors that create them, nets through AddNet, and the graph only
// ever grows. Wires and nets iterate in insertion order.
//
// Blocks are not safe for concurrent mutation; each Block is owned by a
// single caller. Independent Blocks share no state.
//
type Block struct {
	wires  []*Wire
	nets   []*Net
	byName map[string]*Wire
	driver map[*Wire]*Net
	legal  map[Op]bool

	mems      []*MemBlock
	memByName map[string]bool

	nameCount int
	memCount  int

	// condOpen guards against nesting Conditional scopes.
	condOpen bool
}

// New creates an empty block.
func New() *Block {
	return &Block{
		byName:    make(map[string]*Wire),
		driver:    make(map[*Wire]*Net),
		memByName: make(map[string]bool),
		legal:     allOps(),
	}
}

// Wires returns the block's wires in insertion order. The returned slice
// must not be modified.
func (b *Block) Wires() []*Wire { return b.wires }

// Nets returns the block's nets in insertion order. The returned slice
// must not be modified.
func (b *Block) Nets() []*Net { return b.nets }

// WireByName returns the wire with the given name, or nil.
func (b *Block) WireByName(name string) *Wire { return b.byName[name] }

// Driver returns the net driving w, or nil for wires with no producing
// net (inputs, constants, unassigned registers).
func (b *Block) Driver(w *Wire) *Net { return b.driver[w] }

// SetLegalOps restricts the set of ops AddNet will accept, for callers
// lowering the graph to a subset of the primitives.
func (b *Block) SetLegalOps(ops ...Op) {
	b.legal = make(map[Op]bool, len(ops))
	for _, op := range ops {
		b.legal[op] = true
	}
}

// String renders the netlist one net per line, in insertion order.
func (b *Block) String() string {
	var sb strings.Builder
	for _, n := range b.nets {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *Block) newWire(kind Kind, width int, name string) *Wire {
	w := &Wire{
		name:  b.nextName(name),
		width: width,
		kind:  kind,
		block: b,
		named: name != "" && kind != Const,
		index: len(b.wires),
	}
	b.wires = append(b.wires, w)
	b.byName[w.name] = w
	return w
}

func (b *Block) nextName(name string) string {
	if name == "" {
		b.nameCount++
		return "tmp" + strconv.Itoa(b.nameCount)
	}
	switch strings.ToLower(name) {
	case "clk", "clock":
		panic(errors.Errorf("rtl: %q is reserved, clock signals are never explicit", name))
	}
	if _, ok := b.byName[name]; ok {
		panic(errors.Errorf("rtl: duplicate wire name %q", name))
	}
	return name
}

func (b *Block) nextConstName(val *big.Int) string {
	b.nameCount++
	return "const" + strconv.Itoa(b.nameCount) + "_" + val.String()
}

// AddNet connects a new net to wires previously registered with the
// block. The per-net structural checks run immediately and a violation is
// returned without modifying the block.
//
func (b *Block) AddNet(n *Net) error {
	if err := b.checkNet(n); err != nil {
		return err
	}
	b.nets = append(b.nets, n)
	for _, d := range n.Dests {
		b.driver[d] = n
	}
	if n.Mem != nil {
		switch n.Op {
		case OpMemRead:
			n.Mem.readPorts = append(n.Mem.readPorts, n)
		case OpMemWrite:
			n.Mem.writePorts = append(n.Mem.writePorts, n)
		}
	}
	return nil
}

func (b *Block) addNet(n *Net) {
	if err := b.AddNet(n); err != nil {
		panic(err)
	}
}

var netArity = map[Op]int{
	OpConnect: 1, OpNot: 1, OpSelect: 1, OpRegister: 1, OpMemRead: 1,
	OpAnd: 2, OpOr: 2, OpXor: 2, OpAdd: 2, OpSub: 2, OpMul: 2,
	OpLT: 2, OpGT: 2, OpEQ: 2,
	OpMux: 3, OpMemWrite: 3,
	OpConcat: -1, // one or more
}

func (b *Block) checkNet(n *Net) error {
	return b.checkNetAt(n, true)
}

func (b *Block) checkNetAt(n *Net, incremental bool) error {
	if !b.legal[n.Op] {
		return errors.Errorf("rtl: op %q not in the block's legal op set", string(n.Op))
	}
	for _, w := range append(append([]*Wire(nil), n.Args...), n.Dests...) {
		if w == nil {
			return errors.New("rtl: net references a nil wire")
		}
		if w.block != b || w.index >= len(b.wires) || b.wires[w.index] != w {
			return errors.Errorf("rtl: net references wire %q from a different block", w.name)
		}
		if w.width == 0 {
			return errors.Errorf("rtl: wire %q used in a net before its bitwidth is defined", w.name)
		}
	}
	for _, w := range n.Args {
		if w.kind == Output {
			return errors.Errorf("rtl: output %q cannot be a net argument", w.name)
		}
	}
	for _, w := range n.Dests {
		switch w.kind {
		case Input:
			return errors.Errorf("rtl: input %q cannot be a net destination", w.name)
		case Const:
			return errors.Errorf("rtl: constant %q cannot be a net destination", w.name)
		case Register:
			if n.Op != OpRegister {
				return errors.Errorf("rtl: register %q can only be driven by a register net", w.name)
			}
		default:
			if n.Op == OpRegister {
				return errors.Errorf("rtl: register net destination %q is not a register", w.name)
			}
		}
		if d := b.driver[w]; incremental && d != nil {
			return errors.Errorf("rtl: wire %q already driven by net %s", w.name, d)
		}
	}

	if want := netArity[n.Op]; want == -1 {
		if len(n.Args) < 1 {
			return errors.Errorf("rtl: op %q requires at least one argument", string(n.Op))
		}
	} else if len(n.Args) != want {
		return errors.Errorf("rtl: op %q requires %d arguments, got %d", string(n.Op), want, len(n.Args))
	}
	wantDests := 1
	if n.Op == OpMemWrite {
		wantDests = 0
	}
	if len(n.Dests) != wantDests {
		return errors.Errorf("rtl: op %q requires %d destinations, got %d", string(n.Op), wantDests, len(n.Dests))
	}

	if n.Sel != nil && n.Op != OpSelect {
		return errors.Errorf("rtl: op %q carries a bit-selection parameter", string(n.Op))
	}
	if n.Mem != nil && n.Op != OpMemRead && n.Op != OpMemWrite {
		return errors.Errorf("rtl: op %q carries a memory parameter", string(n.Op))
	}

	switch n.Op {
	case OpAnd, OpOr, OpXor, OpAdd, OpSub, OpMul, OpLT, OpGT, OpEQ:
		if n.Args[0].width != n.Args[1].width {
			return errors.Errorf("rtl: op %q arguments have mismatched bitwidths %d and %d",
				string(n.Op), n.Args[0].width, n.Args[1].width)
		}
	case OpMux:
		if n.Args[0].width != 1 {
			return errors.Errorf("rtl: mux select %q must be a single bit", n.Args[0].name)
		}
		if n.Args[1].width != n.Args[2].width {
			return errors.Errorf("rtl: mux cases have mismatched bitwidths %d and %d",
				n.Args[1].width, n.Args[2].width)
		}
	case OpSelect:
		if len(n.Sel) == 0 {
			return errors.New("rtl: select net requires a bit index list")
		}
		for _, i := range n.Sel {
			if i < 0 || i >= n.Args[0].width {
				return errors.Errorf("rtl: select index %d out of bounds for %d-bit wire %q",
					i, n.Args[0].width, n.Args[0].name)
			}
		}
	case OpMemRead, OpMemWrite:
		if n.Mem == nil {
			return errors.Errorf("rtl: op %q requires a memory parameter", string(n.Op))
		}
		if n.Mem.block != b {
			return errors.Errorf("rtl: memory %q belongs to a different block", n.Mem.name)
		}
		if n.Op == OpMemRead {
			if n.Args[0].width != n.Mem.addrwidth {
				return errors.Errorf("rtl: read address %q is %d bits, memory %q addrwidth is %d",
					n.Args[0].name, n.Args[0].width, n.Mem.name, n.Mem.addrwidth)
			}
			if n.Dests[0].width != n.Mem.bitwidth {
				return errors.Errorf("rtl: read data %q is %d bits, memory %q bitwidth is %d",
					n.Dests[0].name, n.Dests[0].width, n.Mem.name, n.Mem.bitwidth)
			}
		} else {
			if n.Mem.IsROM() {
				return errors.Errorf("rtl: ROM %q cannot have a write port", n.Mem.name)
			}
			if n.Args[0].width != n.Mem.addrwidth {
				return errors.Errorf("rtl: write address %q is %d bits, memory %q addrwidth is %d",
					n.Args[0].name, n.Args[0].width, n.Mem.name, n.Mem.addrwidth)
			}
			if n.Args[1].width != n.Mem.bitwidth {
				return errors.Errorf("rtl: write data %q is %d bits, memory %q bitwidth is %d",
					n.Args[1].name, n.Args[1].width, n.Mem.name, n.Mem.bitwidth)
			}
			if n.Args[2].width != 1 {
				return errors.Errorf("rtl: write enable %q must be a single bit", n.Args[2].name)
			}
		}
	}

	// destination width upper bounds: high bits a net cannot define must
	// not exist on the destination
	if wantDests == 1 {
		d := n.Dests[0]
		var max int
		switch n.Op {
		case OpConnect, OpNot, OpAnd, OpOr, OpXor, OpRegister:
			max = n.Args[0].width
		case OpAdd, OpSub:
			max = n.Args[0].width + 1
		case OpMul:
			max = 2 * n.Args[0].width
		case OpLT, OpGT, OpEQ:
			if d.width != 1 {
				return errors.Errorf("rtl: comparison destination %q must be a single bit", d.name)
			}
			max = 1
		case OpMux:
			max = n.Args[1].width
		case OpConcat:
			for _, a := range n.Args {
				max += a.width
			}
		case OpSelect:
			max = len(n.Sel)
		case OpMemRead:
			max = n.Mem.bitwidth
		}
		if d.width > max {
			return errors.Errorf("rtl: upper bits of destination %q undefined by op %q", d.name, string(n.Op))
		}
	}
	return nil
}

// SanityCheck verifies the global structural invariants of the block and
// returns a single error aggregating every violation found. It never
// mutates the block: calling it twice on an unmodified block yields the
// same result. Run it as a pre-flight gate before simulation or any
// whole-graph transform.
//
func (b *Block) SanityCheck() error {
	var problems []string
	for _, n := range b.nets {
		if err := b.checkNetAt(n, false); err != nil {
			problems = append(problems, err.Error())
		}
	}

	inArgs := make(map[*Wire]bool)
	inDests := make(map[*Wire]bool)
	for _, n := range b.nets {
		for _, a := range n.Args {
			inArgs[a] = true
		}
		for _, d := range n.Dests {
			inDests[d] = true
		}
	}
	for _, w := range b.wires {
		if w.width == 0 {
			problems = append(problems, "wire "+strconv.Quote(w.name)+" has no bitwidth")
			continue
		}
		if !inArgs[w] && !inDests[w] && w.kind != Input {
			problems = append(problems, "wire "+strconv.Quote(w.name)+" declared but not connected")
		}
		if inArgs[w] && !inDests[w] {
			switch w.kind {
			case Input, Const, Register:
				// inputs and constants are sources; a register with no
				// Next keeps its previous value
			default:
				problems = append(problems, "wire "+strconv.Quote(w.name)+" used but never driven")
			}
		}
	}

	if len(problems) > 0 {
		return errors.Errorf("rtl: sanity check failed:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
