// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl_test

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtlkit/rtl"
)

func TestFullAdder(t *testing.T) {
	b := rtl.New()
	a, c, cin := b.Input(1, "a"), b.Input(1, "b"), b.Input(1, "cin")
	sum, cout := b.Output(1, "sum"), b.Output(1, "cout")
	sum.Connect(a.Xor(c).Xor(cin))
	cout.Connect(a.And(c).Or(a.And(cin)).Or(c.And(cin)))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)

	require.NoError(t, sim.Step(map[string]uint64{"a": 1, "b": 0, "cin": 1}))
	s, err := sim.Inspect("sum")
	require.NoError(t, err)
	assert.EqualValues(t, 0, s)
	co, err := sim.Inspect("cout")
	require.NoError(t, err)
	assert.EqualValues(t, 1, co)

	// exhaustive
	for i := uint64(0); i < 8; i++ {
		av, bv, cv := i&1, i>>1&1, i>>2&1
		require.NoError(t, sim.Step(map[string]uint64{"a": av, "b": bv, "cin": cv}))
		s, _ := sim.Inspect("sum")
		co, _ := sim.Inspect("cout")
		assert.EqualValues(t, (av+bv+cv)&1, s, "sum of %d+%d+%d", av, bv, cv)
		assert.EqualValues(t, (av+bv+cv)>>1, co, "cout of %d+%d+%d", av, bv, cv)
	}
}

func TestCounter(t *testing.T) {
	b := rtl.New()
	counter := b.Register(3, "counter")
	counter.Next(counter.Add(b.Const(1, 1)))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(10, nil, map[string][]uint64{
		"counter": {1, 2, 3, 4, 5, 6, 7, 0, 1, 2},
	})
	assert.NoError(t, err)
	assert.Equal(t, 10, sim.Cycle())
}

func TestCounterInitialValue(t *testing.T) {
	b := rtl.New()
	counter := b.Register(3, "counter")
	counter.Next(counter.Add(b.Const(1, 1)))

	sim, err := rtl.NewSimulation(b, rtl.WithRegisters(map[string]uint64{"counter": 5}))
	require.NoError(t, err)
	require.NoError(t, sim.Step(nil))
	v, err := sim.Inspect("counter")
	require.NoError(t, err)
	assert.EqualValues(t, 6, v)

	_, err = rtl.NewSimulation(b, rtl.WithRegisters(map[string]uint64{"nope": 1}))
	assert.Error(t, err)
	_, err = rtl.NewSimulation(b, rtl.WithRegisters(map[string]uint64{"counter": 8}))
	assert.Error(t, err)
}

// After every step a register holds its next-expression evaluated on the
// pre-step values of the expression's arguments.
func TestRegisterCommitSemantics(t *testing.T) {
	b := rtl.New()
	in := b.Input(3, "in")
	acc := b.Register(3, "acc")
	acc.Next(acc.Add(in))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	model := uint64(0)
	for i := 0; i < 50; i++ {
		v := uint64(rng.Intn(8))
		require.NoError(t, sim.Step(map[string]uint64{"in": v}))
		model = (model + v) % 8
		got, err := sim.Inspect("acc")
		require.NoError(t, err)
		require.EqualValues(t, model, got, "cycle %d", i)
	}
}

func TestRegisterWithoutNextHoldsValue(t *testing.T) {
	b := rtl.New()
	r := b.Register(4, "r")
	out := b.Output(4, "out")
	out.Connect(r)

	sim, err := rtl.NewSimulation(b, rtl.WithRegisters(map[string]uint64{"r": 9}))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, sim.Step(nil))
		v, _ := sim.Inspect("out")
		assert.EqualValues(t, 9, v)
	}
}

func TestStepInputValidation(t *testing.T) {
	b := rtl.New()
	in := b.Input(3, "in")
	acc := b.Register(3, "acc")
	acc.Next(acc.Add(in))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)

	tests := []struct {
		name   string
		inputs map[string]uint64
	}{
		{"missing input", nil},
		{"unknown input", map[string]uint64{"in": 1, "bogus": 0}},
		{"not an input", map[string]uint64{"in": 1, "acc": 0}},
		{"value too wide", map[string]uint64{"in": 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, sim.Step(tt.inputs))
			// a failed step commits nothing
			assert.Equal(t, 0, sim.Cycle())
			v, err := sim.Inspect("acc")
			require.NoError(t, err)
			assert.EqualValues(t, 0, v)
		})
	}

	require.NoError(t, sim.Step(map[string]uint64{"in": 7}))
	assert.Equal(t, 1, sim.Cycle())
}

func TestCombinationalLoop(t *testing.T) {
	b := rtl.New()
	a := b.Wire(1, "a")
	a.Connect(a.Not())

	_, err := rtl.NewSimulation(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combinational loop")

	_, err = rtl.NewFastSimulation(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "combinational loop")
}

func TestLoopThroughRegisterIsFine(t *testing.T) {
	b := rtl.New()
	r := b.Register(4, "r")
	r.Next(r.Not())
	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	require.NoError(t, sim.Step(nil))
	v, _ := sim.Inspect("r")
	assert.EqualValues(t, 0xf, v)
}

func TestSanityCheckGatesSimulation(t *testing.T) {
	b := rtl.New()
	b.Wire(4, "floating")
	_, err := rtl.NewSimulation(b)
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	b := rtl.New()
	wide := new(big.Int).Lsh(big.NewInt(1), 70)
	out := b.Output(71, "wide")
	out.Connect(b.ConstBig(wide, 71))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	require.NoError(t, sim.Step(nil))

	_, err = sim.Inspect("wide")
	assert.Error(t, err)
	v, err := sim.InspectBig("wide")
	require.NoError(t, err)
	assert.Zero(t, v.Cmp(wide))

	_, err = sim.Inspect("nope")
	assert.Error(t, err)
}

func TestWideArithmetic(t *testing.T) {
	b := rtl.New()
	x := new(big.Int).Lsh(big.NewInt(1), 80) // 2^80
	y := big.NewInt(12345)
	sum := b.ConstBig(x, 0).Add(b.ConstBig(y, 81))
	out := b.Output(sum.BitWidth(), "sum")
	out.Connect(sum)

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	require.NoError(t, sim.Step(nil))
	v, err := sim.InspectBig("sum")
	require.NoError(t, err)
	assert.Zero(t, v.Cmp(new(big.Int).Add(x, y)))
}

func TestStepMultipleReportsAllMismatches(t *testing.T) {
	b := rtl.New()
	counter := b.Register(3, "counter")
	counter.Next(counter.Add(b.Const(1, 1)))

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(4, nil, map[string][]uint64{
		"counter": {1, 0, 3, 0},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle 1")
	assert.Contains(t, err.Error(), "cycle 3")
	assert.NotContains(t, err.Error(), "cycle 2")
}

func TestStepMultipleSequenceLength(t *testing.T) {
	b := rtl.New()
	in := b.Input(1, "in")
	out := b.Output(1, "out")
	out.Connect(in)

	sim, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	err = sim.StepMultiple(3, map[string][]uint64{"in": {1, 0}}, nil)
	assert.Error(t, err)
}

func TestIndependentSimulationsShareNoState(t *testing.T) {
	b := rtl.New()
	counter := b.Register(3, "counter")
	counter.Next(counter.Add(b.Const(1, 1)))

	s1, err := rtl.NewSimulation(b)
	require.NoError(t, err)
	s2, err := rtl.NewSimulation(b, rtl.WithRegisters(map[string]uint64{"counter": 4}))
	require.NoError(t, err)

	require.NoError(t, s1.Step(nil))
	require.NoError(t, s1.Step(nil))
	require.NoError(t, s2.Step(nil))

	v1, _ := s1.Inspect("counter")
	v2, _ := s2.Inspect("counter")
	assert.EqualValues(t, 2, v1)
	assert.EqualValues(t, 5, v2)
}
