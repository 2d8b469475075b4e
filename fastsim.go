// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"
)

// A FastSimulation trades construction time for stepping speed: instead
// of interpreting the netlist every cycle it compiles each net into a
// closure over the value table, once, in evaluation order. Construction,
// stepping and inspection behave exactly like Simulation, and for any
// block and input sequence the two produce identical values.
//
type FastSimulation struct {
	*simState
	prog []func()
}

// NewFastSimulation runs the block's sanity check and compiles the
// evaluation program. It accepts the same options as NewSimulation.
func NewFastSimulation(b *Block, opts ...Option) (*FastSimulation, error) {
	st, err := newSimState(b, opts)
	if err != nil {
		return nil, err
	}
	order, err := topoOrder(b)
	if err != nil {
		return nil, err
	}
	s := &FastSimulation{simState: st}
	s.prog = make([]func(), len(order))
	for i, n := range order {
		s.prog[i] = s.compile(n)
	}
	return s, nil
}

// Step advances the simulation one cycle, with the same input contract as
// Simulation.Step.
func (s *FastSimulation) Step(inputs map[string]uint64) error {
	if err := s.applyInputs(inputs); err != nil {
		return err
	}
	for _, f := range s.prog {
		f()
	}
	s.stagePending()
	s.commit()
	return nil
}

// StepMultiple runs the given number of steps, driving each input from
// its value sequence and collecting every mismatch against expected.
func (s *FastSimulation) StepMultiple(steps int, inputs map[string][]uint64, expected map[string][]uint64) error {
	return stepMultiple(s, steps, inputs, expected)
}

// Inspect returns the value of the named wire after the latest step.
func (s *FastSimulation) Inspect(name string) (uint64, error) {
	return inspect64(s.simState, name)
}

// InspectBig is Inspect without the 64-bit limit.
func (s *FastSimulation) InspectBig(name string) (*big.Int, error) {
	return s.simState.inspect(name)
}

// Cycle returns the number of completed steps.
func (s *FastSimulation) Cycle() int { return s.cycle }

// compile specializes one combinational net into a closure. The value
// table's backing array never moves, so closures capture it directly.
func (s *FastSimulation) compile(n *Net) func() {
	st := s.simState
	vals := st.vals
	d := n.Dests[0].index
	mask := st.maskFor(n.Dests[0].width)
	a0 := n.Args[0].index

	switch n.Op {
	case OpConnect:
		return func() { vals[d] = new(big.Int).And(vals[a0], mask) }
	case OpNot:
		return func() {
			z := new(big.Int).Not(vals[a0])
			vals[d] = z.And(z, mask)
		}
	case OpAnd:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).And(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpOr:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).Or(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpXor:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).Xor(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpAdd:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).Add(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpSub:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).Sub(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpMul:
		a1 := n.Args[1].index
		return func() {
			z := new(big.Int).Mul(vals[a0], vals[a1])
			vals[d] = z.And(z, mask)
		}
	case OpLT:
		a1 := n.Args[1].index
		return func() { vals[d] = boolBig(vals[a0].Cmp(vals[a1]) < 0) }
	case OpGT:
		a1 := n.Args[1].index
		return func() { vals[d] = boolBig(vals[a0].Cmp(vals[a1]) > 0) }
	case OpEQ:
		a1 := n.Args[1].index
		return func() { vals[d] = boolBig(vals[a0].Cmp(vals[a1]) == 0) }
	case OpMux:
		a1, a2 := n.Args[1].index, n.Args[2].index
		return func() {
			src := a1
			if vals[a0].Sign() != 0 {
				src = a2
			}
			z := new(big.Int).Set(vals[src])
			vals[d] = z.And(z, mask)
		}
	case OpConcat:
		idx := make([]int, len(n.Args))
		widths := make([]uint, len(n.Args))
		for i, a := range n.Args {
			idx[i] = a.index
			widths[i] = uint(a.width)
		}
		return func() {
			z := new(big.Int)
			for i, a := range idx {
				z.Lsh(z, widths[i])
				z.Or(z, vals[a])
			}
			vals[d] = z.And(z, mask)
		}
	case OpSelect:
		sel := n.Sel
		return func() {
			z := new(big.Int)
			src := vals[a0]
			for i, b := range sel {
				if src.Bit(b) != 0 {
					z.SetBit(z, i, 1)
				}
			}
			vals[d] = z
		}
	case OpMemRead:
		m := n.Mem
		return func() {
			z := st.memRead(m, vals[a0].Uint64())
			vals[d] = z.And(z, mask)
		}
	}
	// checkNet rejects anything else before it reaches the block
	panic("rtl: cannot compile op " + string(n.Op))
}
