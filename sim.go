// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"fmt"
	"math/big"
	"math/bits"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// An Option configures a Simulation or FastSimulation.
//
type Option func(*simConfig)

type simConfig struct {
	regs  map[string]uint64
	mems  []memInit
	trace *Trace
}

type memInit struct {
	mem      *MemBlock
	contents map[uint64]uint64
}

// WithRegisters sets initial register values by register name.
// Unspecified registers start at 0.
func WithRegisters(values map[string]uint64) Option {
	return func(c *simConfig) { c.regs = values }
}

// WithMemory sets the initial contents of one memory. Unspecified
// addresses read as 0.
func WithMemory(mem *MemBlock, contents map[uint64]uint64) Option {
	return func(c *simConfig) { c.mems = append(c.mems, memInit{mem, contents}) }
}

// WithTrace attaches a trace observer: after every step it records the
// post-commit value of each traced wire. Tracing never influences
// simulation results.
func WithTrace(t *Trace) Option {
	return func(c *simConfig) { c.trace = t }
}

// simState is the mutable per-simulation value state: one value per wire
// plus the contents of every memory. Two simulations of one Block never
// share a simState.
type simState struct {
	block  *Block
	vals   []*big.Int
	mems   map[int]map[uint64]*big.Int
	inputs []*Wire
	regs   []*Net // OpRegister nets
	writes []*Net // OpMemWrite nets in insertion order
	trace  *Trace
	cycle  int
	masks  map[int]*big.Int

	pendRegs   []*big.Int
	pendWrites []pendWrite
}

type pendWrite struct {
	memid int
	addr  uint64
	data  *big.Int
}

func newSimState(b *Block, opts []Option) (*simState, error) {
	if err := b.SanityCheck(); err != nil {
		return nil, err
	}
	var cfg simConfig
	for _, o := range opts {
		o(&cfg)
	}

	st := &simState{
		block: b,
		vals:  make([]*big.Int, len(b.wires)),
		mems:  make(map[int]map[uint64]*big.Int),
		masks: make(map[int]*big.Int),
		trace: cfg.trace,
	}
	if st.trace != nil && st.trace.block != b {
		return nil, errors.New("rtl: trace observes a different block")
	}
	for i, w := range b.wires {
		switch w.kind {
		case Const:
			st.vals[i] = new(big.Int).Set(w.val)
		default:
			st.vals[i] = new(big.Int)
		}
		if w.kind == Input {
			st.inputs = append(st.inputs, w)
		}
	}
	for _, n := range b.nets {
		switch n.Op {
		case OpRegister:
			st.regs = append(st.regs, n)
		case OpMemWrite:
			st.writes = append(st.writes, n)
		}
	}
	st.pendRegs = make([]*big.Int, len(st.regs))

	for name, v := range cfg.regs {
		w := b.byName[name]
		if w == nil || w.kind != Register {
			return nil, errors.Errorf("rtl: initial value given for unknown register %q", name)
		}
		val := new(big.Int).SetUint64(v)
		if val.BitLen() > w.width {
			return nil, errors.Errorf("rtl: initial value %d does not fit register %q (%d bits)", v, name, w.width)
		}
		st.vals[w.index] = val
	}

	for _, m := range b.mems {
		contents := make(map[uint64]*big.Int, len(m.rom))
		for addr, v := range m.rom {
			if v.Sign() != 0 {
				contents[uint64(addr)] = new(big.Int).Set(v)
			}
		}
		st.mems[m.id] = contents
	}
	for _, mi := range cfg.mems {
		if mi.mem.block != b {
			return nil, errors.Errorf("rtl: initial contents given for memory %q of a different block", mi.mem.name)
		}
		if mi.mem.IsROM() {
			return nil, errors.Errorf("rtl: ROM %q contents are fixed at construction", mi.mem.name)
		}
		for addr, v := range mi.contents {
			if addr>>uint(mi.mem.addrwidth) != 0 {
				return nil, errors.Errorf("rtl: address %d outside memory %q address space", addr, mi.mem.name)
			}
			val := new(big.Int).SetUint64(v)
			if val.BitLen() > mi.mem.bitwidth {
				return nil, errors.Errorf("rtl: value %d does not fit memory %q word (%d bits)", v, mi.mem.name, mi.mem.bitwidth)
			}
			st.mems[mi.mem.id][addr] = val
		}
	}
	return st, nil
}

func (st *simState) maskFor(width int) *big.Int {
	m := st.masks[width]
	if m == nil {
		m = new(big.Int).Lsh(big.NewInt(1), uint(width))
		m.Sub(m, big.NewInt(1))
		st.masks[width] = m
	}
	return m
}

// mask wraps z to width bits in place and returns it. math/big uses an
// infinite two's complement view for negative values, so And also wraps
// subtraction and complement results correctly.
func (st *simState) mask(z *big.Int, width int) *big.Int {
	return z.And(z, st.maskFor(width))
}

// applyInputs validates the full input map before touching any state, so
// a failed step commits nothing.
func (st *simState) applyInputs(named map[string]uint64) error {
	for name := range named {
		w := st.block.byName[name]
		if w == nil || w.kind != Input {
			return errors.Errorf("rtl: step provided a value for %q which is not a known input", name)
		}
	}
	for _, w := range st.inputs {
		v, ok := named[w.name]
		if !ok {
			return errors.Errorf("rtl: input %q has no value for this step", w.name)
		}
		if bits.Len64(v) > w.width {
			return errors.Errorf("rtl: value %d does not fit input %q (%d bits)", v, w.name, w.width)
		}
	}
	for _, w := range st.inputs {
		st.vals[w.index] = new(big.Int).SetUint64(named[w.name])
	}
	return nil
}

// stagePending computes every register's next value and every enabled
// write's (address, data) pair without committing them.
func (st *simState) stagePending() {
	for i, n := range st.regs {
		v := new(big.Int).Set(st.vals[n.Args[0].index])
		st.pendRegs[i] = st.mask(v, n.Dests[0].width)
	}
	st.pendWrites = st.pendWrites[:0]
	for _, n := range st.writes {
		if st.vals[n.Args[2].index].Sign() == 0 {
			continue
		}
		st.pendWrites = append(st.pendWrites, pendWrite{
			memid: n.Mem.id,
			addr:  st.vals[n.Args[0].index].Uint64(),
			data:  new(big.Int).Set(st.vals[n.Args[1].index]),
		})
	}
}

// commit applies the staged updates simultaneously: one global clock
// edge. Writes land in port declaration order, so the last-declared port
// wins an address collision.
func (st *simState) commit() {
	for i, n := range st.regs {
		st.vals[n.Dests[0].index] = st.pendRegs[i]
	}
	for _, w := range st.pendWrites {
		st.mems[w.memid][w.addr] = w.data
	}
	if st.trace != nil {
		st.trace.record(st)
	}
	st.cycle++
}

// memRead returns a fresh value holding mem[addr] as of the last commit.
func (st *simState) memRead(m *MemBlock, addr uint64) *big.Int {
	if m.romFn != nil {
		return new(big.Int).SetUint64(m.romFn(addr))
	}
	if v := st.mems[m.id][addr]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (st *simState) inspect(name string) (*big.Int, error) {
	w := st.block.byName[name]
	if w == nil {
		return nil, errors.Errorf("rtl: no wire named %q", name)
	}
	return new(big.Int).Set(st.vals[w.index]), nil
}

// A Simulation evaluates a finished Block one cycle per Step, updating
// registers and memories synchronously. The evaluation order over the
// combinational nets is computed once at construction; a combinational
// loop is reported then, with the offending nets.
//
type Simulation struct {
	*simState
	order []*Net
}

// NewSimulation runs the block's sanity check, precomputes the evaluation
// order and initializes register and memory state.
func NewSimulation(b *Block, opts ...Option) (*Simulation, error) {
	st, err := newSimState(b, opts)
	if err != nil {
		return nil, err
	}
	order, err := topoOrder(b)
	if err != nil {
		return nil, err
	}
	return &Simulation{simState: st, order: order}, nil
}

// topoOrder returns the combinational nets in an order consistent with
// data dependencies: register and memory-read outputs count as
// always-ready sources holding the value latched at the start of the
// cycle. Sweeps are repeated until no progress is made; leftover nets
// form a combinational loop.
func topoOrder(b *Block) ([]*Net, error) {
	defined := make(map[*Wire]bool, len(b.wires))
	for _, w := range b.wires {
		if d := b.driver[w]; d == nil || !d.combinational() {
			defined[w] = true
		}
	}
	var pending []*Net
	for _, n := range b.nets {
		if n.combinational() {
			pending = append(pending, n)
		}
	}
	order := make([]*Net, 0, len(pending))
	for len(pending) > 0 {
		var stuck []*Net
		for _, n := range pending {
			ready := true
			for _, a := range n.Args {
				if !defined[a] {
					ready = false
					break
				}
			}
			if !ready {
				stuck = append(stuck, n)
				continue
			}
			order = append(order, n)
			for _, d := range n.Dests {
				defined[d] = true
			}
		}
		if len(stuck) == len(pending) {
			lines := make([]string, len(stuck))
			for i, n := range stuck {
				lines[i] = n.String()
			}
			return nil, errors.Errorf("rtl: combinational loop through nets:\n  %s",
				strings.Join(lines, "\n  "))
		}
		pending = stuck
	}
	return order, nil
}

// Step advances the simulation one cycle. inputs must hold exactly one
// value per declared Input wire; a failed step returns without committing
// any state.
//
func (s *Simulation) Step(inputs map[string]uint64) error {
	if err := s.applyInputs(inputs); err != nil {
		return err
	}
	for _, n := range s.order {
		s.evalNet(n)
	}
	s.stagePending()
	s.commit()
	return nil
}

func (s *Simulation) evalNet(n *Net) {
	st := s.simState
	arg := func(i int) *big.Int { return st.vals[n.Args[i].index] }
	d := n.Dests[0]
	var z *big.Int
	switch n.Op {
	case OpConnect:
		z = new(big.Int).Set(arg(0))
	case OpNot:
		z = new(big.Int).Not(arg(0))
	case OpAnd:
		z = new(big.Int).And(arg(0), arg(1))
	case OpOr:
		z = new(big.Int).Or(arg(0), arg(1))
	case OpXor:
		z = new(big.Int).Xor(arg(0), arg(1))
	case OpAdd:
		z = new(big.Int).Add(arg(0), arg(1))
	case OpSub:
		z = new(big.Int).Sub(arg(0), arg(1))
	case OpMul:
		z = new(big.Int).Mul(arg(0), arg(1))
	case OpLT:
		z = boolBig(arg(0).Cmp(arg(1)) < 0)
	case OpGT:
		z = boolBig(arg(0).Cmp(arg(1)) > 0)
	case OpEQ:
		z = boolBig(arg(0).Cmp(arg(1)) == 0)
	case OpMux:
		if arg(0).Sign() == 0 {
			z = new(big.Int).Set(arg(1))
		} else {
			z = new(big.Int).Set(arg(2))
		}
	case OpConcat:
		z = new(big.Int)
		for i, a := range n.Args {
			z.Lsh(z, uint(a.width))
			z.Or(z, arg(i))
		}
	case OpSelect:
		z = new(big.Int)
		src := arg(0)
		for i, b := range n.Sel {
			if src.Bit(b) != 0 {
				z.SetBit(z, i, 1)
			}
		}
	case OpMemRead:
		z = st.memRead(n.Mem, arg(0).Uint64())
	}
	st.vals[d.index] = st.mask(z, d.width)
}

func boolBig(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return new(big.Int)
}

// StepMultiple runs the given number of steps, driving each input from
// its value sequence. If expected is non-nil, the named wires are checked
// after every step and all mismatches are reported in one error.
//
func (s *Simulation) StepMultiple(steps int, inputs map[string][]uint64, expected map[string][]uint64) error {
	return stepMultiple(s, steps, inputs, expected)
}

// Inspect returns the value of the named wire after the latest step:
// post-commit for registers, as evaluated during the step for everything
// else. Values wider than 64 bits need InspectBig.
func (s *Simulation) Inspect(name string) (uint64, error) {
	return inspect64(s.simState, name)
}

// InspectBig is Inspect without the 64-bit limit.
func (s *Simulation) InspectBig(name string) (*big.Int, error) {
	return s.simState.inspect(name)
}

// Cycle returns the number of completed steps.
func (s *Simulation) Cycle() int { return s.cycle }

type stepper interface {
	Step(map[string]uint64) error
	state() *simState
}

func (s *Simulation) state() *simState     { return s.simState }
func (s *FastSimulation) state() *simState { return s.simState }

func inspect64(st *simState, name string) (uint64, error) {
	v, err := st.inspect(name)
	if err != nil {
		return 0, err
	}
	if v.BitLen() > 64 {
		return 0, errors.Errorf("rtl: value of %q is wider than 64 bits, use InspectBig", name)
	}
	return v.Uint64(), nil
}

func stepMultiple(s stepper, steps int, inputs map[string][]uint64, expected map[string][]uint64) error {
	for name, seq := range inputs {
		if len(seq) < steps {
			return errors.Errorf("rtl: input sequence for %q has %d values, need %d", name, len(seq), steps)
		}
	}
	for name, seq := range expected {
		if len(seq) < steps {
			return errors.Errorf("rtl: expected sequence for %q has %d values, need %d", name, len(seq), steps)
		}
	}
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var mismatches []string
	in := make(map[string]uint64, len(inputs))
	for i := 0; i < steps; i++ {
		for name, seq := range inputs {
			in[name] = seq[i]
		}
		if err := s.Step(in); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
		for _, name := range names {
			got, err := inspect64(s.state(), name)
			if err != nil {
				return errors.Wrapf(err, "step %d", i)
			}
			if want := expected[name][i]; got != want {
				mismatches = append(mismatches,
					fmt.Sprintf("cycle %d: %s = %d, want %d", i, name, got, want))
			}
		}
	}
	if len(mismatches) > 0 {
		return errors.Errorf("rtl: unexpected output values:\n  %s", strings.Join(mismatches, "\n  "))
	}
	return nil
}
