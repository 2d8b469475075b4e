// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtlkit/rtl"
)

func bitSeq(s string) []uint64 {
	out := make([]uint64, len(s))
	for i, c := range s {
		out[i] = uint64(c - '0')
	}
	return out
}

// Vending machine: three tokens buy one dispense, a refund request beats
// everything, and an unexpected token refunds too.
func TestConditionalVendingMachine(t *testing.T) {
	const (
		stWait = iota
		stTok1
		stTok2
		stTok3
		stDisp
		stRefund
	)

	b := rtl.New()
	tokenIn := b.Input(1, "token_in")
	reqRefund := b.Input(1, "req_refund")
	dispense := b.Output(1, "dispense")
	refund := b.Output(1, "refund")
	state := b.Register(3, "state")
	st := func(v uint64) *rtl.Wire { return b.Const(v, 3) }

	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(reqRefund, func() {
			c.Next(state, st(stRefund))
		})
		c.When(tokenIn, func() {
			c.When(state.Eq(st(stWait)), func() { c.Next(state, st(stTok1)) })
			c.When(state.Eq(st(stTok1)), func() { c.Next(state, st(stTok2)) })
			c.When(state.Eq(st(stTok2)), func() { c.Next(state, st(stTok3)) })
			c.When(state.Eq(st(stTok3)), func() { c.Next(state, st(stDisp)) })
			c.Otherwise(func() { c.Next(state, st(stRefund)) })
		})
		c.When(state.Eq(st(stDisp)), func() { c.Next(state, st(stWait)) })
		c.When(state.Eq(st(stRefund)), func() { c.Next(state, st(stWait)) })
	})
	dispense.Connect(state.Eq(st(stDisp)))
	refund.Connect(state.Eq(st(stRefund)))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(16,
		map[string][]uint64{
			"token_in":   bitSeq("0010100111010000"),
			"req_refund": bitSeq("1100010000000000"),
		},
		map[string][]uint64{
			"dispense": bitSeq("0000000000001000"),
			"refund":   bitSeq("0111001000000000"),
		})
	assert.NoError(t, err)
}

// A nested conditional is bit-for-bit the mux chain it describes.
func TestConditionalMatchesManualMuxChain(t *testing.T) {
	buildInputs := func(b *rtl.Block) (p1, p2, v1, v2, v3 *rtl.Wire) {
		return b.Input(1, "p1"), b.Input(1, "p2"),
			b.Input(4, "v1"), b.Input(4, "v2"), b.Input(4, "v3")
	}

	cond := rtl.New()
	{
		p1, p2, v1, v2, v3 := buildInputs(cond)
		res := cond.Wire(4, "res")
		rtl.Conditional(cond, func(c *rtl.Cond) {
			c.When(p1, func() {
				c.When(p2, func() { c.Connect(res, v1) })
				c.Otherwise(func() { c.Connect(res, v2) })
			})
			c.Otherwise(func() { c.Connect(res, v3) })
		})
		cond.Output(4, "out").Connect(res)
	}

	manual := rtl.New()
	{
		p1, p2, v1, v2, v3 := buildInputs(manual)
		manual.Output(4, "out").Connect(rtl.Mux(p1, v3, rtl.Mux(p2, v2, v1)))
	}

	sc, err := rtl.NewSimulation(cond)
	require.NoError(t, err)
	sm, err := rtl.NewSimulation(manual)
	require.NoError(t, err)

	for p := uint64(0); p < 4; p++ {
		in := map[string]uint64{
			"p1": p & 1, "p2": p >> 1,
			"v1": 5, "v2": 9, "v3": 12,
		}
		require.NoError(t, sc.Step(in))
		require.NoError(t, sm.Step(in))
		want, err := sm.Inspect("out")
		require.NoError(t, err)
		got, err := sc.Inspect("out")
		require.NoError(t, err)
		assert.Equal(t, want, got, "p1=%d p2=%d", p&1, p>>1)
	}
}

// An unmatched plain wire reads 0, the first-listed sibling wins.
func TestConditionalPriorityAndDefault(t *testing.T) {
	b := rtl.New()
	p1, p2 := b.Input(1, "p1"), b.Input(1, "p2")
	w := b.Wire(4, "w")
	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(p1, func() { c.Connect(w, b.Const(3, 4)) })
		c.When(p2, func() { c.Connect(w, b.Const(9, 4)) })
	})
	b.Output(4, "out").Connect(w)

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(4,
		map[string][]uint64{
			"p1": {0, 1, 0, 1},
			"p2": {0, 0, 1, 1},
		},
		map[string][]uint64{
			"out": {0, 3, 9, 3},
		})
	assert.NoError(t, err)
}

func TestConditionalRegisterKeepsValue(t *testing.T) {
	b := rtl.New()
	load := b.Input(1, "load")
	val := b.Input(4, "val")
	r := b.Register(4, "r")
	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(load, func() { c.Next(r, val) })
	})

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(4,
		map[string][]uint64{
			"load": {1, 0, 0, 1},
			"val":  {7, 3, 3, 5},
		},
		map[string][]uint64{
			"r": {7, 7, 7, 5},
		})
	assert.NoError(t, err)
}

func TestConditionalMemoryWrite(t *testing.T) {
	b := rtl.New()
	sel := b.Input(1, "sel")
	m := b.Mem(8, 3, "m")
	out := b.Output(8, "out")
	out.Connect(m.Read(b.Const(2, 3)))
	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(sel, func() { c.Write(m, b.Const(2, 3), b.Const(77, 8), nil) })
	})

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(3,
		map[string][]uint64{"sel": {0, 1, 0}},
		map[string][]uint64{"out": {0, 0, 77}})
	assert.NoError(t, err)
}

// Sibling conditional scopes on one block compile independently.
func TestSiblingConditionals(t *testing.T) {
	b := rtl.New()
	p := b.Input(1, "p")
	w1, w2 := b.Wire(1, "w1"), b.Wire(1, "w2")
	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(p, func() { c.Connect(w1, b.Const(1, 1)) })
	})
	rtl.Conditional(b, func(c *rtl.Cond) {
		c.When(p.Not(), func() { c.Connect(w2, b.Const(1, 1)) })
	})
	b.Output(1, "o1").Connect(w1)
	b.Output(1, "o2").Connect(w2)

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(2,
		map[string][]uint64{"p": {0, 1}},
		map[string][]uint64{"o1": {0, 1}, "o2": {1, 0}})
	assert.NoError(t, err)
}

func TestConditionalMisuse(t *testing.T) {
	t.Run("nesting scopes", func(t *testing.T) {
		b := rtl.New()
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				rtl.Conditional(b, func(*rtl.Cond) {})
			})
		})
	})
	t.Run("connect outside a condition", func(t *testing.T) {
		b := rtl.New()
		w := b.Wire(1, "w")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.Connect(w, b.Const(1, 1))
			})
		})
	})
	t.Run("otherwise without when", func(t *testing.T) {
		b := rtl.New()
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.Otherwise(func() {})
			})
		})
	})
	t.Run("duplicate otherwise", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(1, "p")
		w := b.Wire(1, "w")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() { c.Connect(w, b.Const(1, 1)) })
				c.Otherwise(func() {})
				c.Otherwise(func() {})
			})
		})
	})
	t.Run("when after otherwise", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(1, "p")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() {})
				c.Otherwise(func() {})
				c.When(p, func() {})
			})
		})
	})
	t.Run("wide predicate", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(2, "p")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() {})
			})
		})
	})
	t.Run("unconditional connect inside scope", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(1, "p")
		w := b.Wire(1, "w")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() { w.Connect(b.Const(1, 1)) })
			})
		})
	})
	t.Run("deferred width under condition", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(1, "p")
		w := b.Wire(0, "w")
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() { c.Connect(w, b.Const(1, 1)) })
			})
		})
	})
	t.Run("next on register with unconditional next", func(t *testing.T) {
		b := rtl.New()
		p := b.Input(1, "p")
		r := b.Register(1, "r")
		r.Next(p)
		assert.Panics(t, func() {
			rtl.Conditional(b, func(c *rtl.Cond) {
				c.When(p, func() { c.Next(r, b.Const(0, 1)) })
			})
		})
	})
}
