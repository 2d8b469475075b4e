// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl_test

import (
	"math/big"
	"testing"

	"github.com/rtlkit/rtl"
)

func TestConstWidthInference(t *testing.T) {
	tests := []struct {
		val   uint64
		width int
		want  int
	}{
		{0, 0, 1},
		{1, 0, 1},
		{2, 0, 2},
		{255, 0, 8},
		{256, 0, 9},
		{5, 8, 8},
	}
	b := rtl.New()
	for _, tt := range tests {
		c := b.Const(tt.val, tt.width)
		if got := c.BitWidth(); got != tt.want {
			t.Errorf("Const(%d, %d): width %d, want %d", tt.val, tt.width, got, tt.want)
		}
		if v := c.ConstValue(); v.Uint64() != tt.val {
			t.Errorf("Const(%d, %d): value %s", tt.val, tt.width, v)
		}
	}
}

func TestConstSigned(t *testing.T) {
	tests := []struct {
		val   int64
		width int
		want  uint64
	}{
		{-1, 4, 0xf},
		{-8, 4, 0x8},
		{-1, 1, 1},
		{7, 4, 7},
		{3, 0, 3},
	}
	b := rtl.New()
	for _, tt := range tests {
		c := b.ConstSigned(tt.val, tt.width)
		if v := c.ConstValue(); v.Uint64() != tt.want {
			t.Errorf("ConstSigned(%d, %d) = %s, want %d", tt.val, tt.width, v, tt.want)
		}
	}
}

func TestConstPanics(t *testing.T) {
	b := rtl.New()
	mustPanic(t, "const too wide", func() { b.Const(16, 4) })
	mustPanic(t, "signed overflow", func() { b.ConstSigned(-9, 4) })
	mustPanic(t, "negative without width", func() { b.ConstSigned(-1, 0) })
	mustPanic(t, "negative big", func() { b.ConstBig(big.NewInt(-2), 4) })
}

func TestDeferredWidth(t *testing.T) {
	b := rtl.New()
	src := b.Input(4, "src")
	w := b.Wire(0, "w")
	if w.BitWidth() != 0 {
		t.Fatalf("fresh deferred wire has width %d", w.BitWidth())
	}
	w.Connect(src)
	if w.BitWidth() != 4 {
		t.Fatalf("width after connect = %d, want 4", w.BitWidth())
	}
	// a deferred wire cannot feed an operator before its width is known
	u := b.Wire(0, "u")
	mustPanic(t, "op on deferred width", func() { u.Not() })
}

func TestWireString(t *testing.T) {
	b := rtl.New()
	tests := []struct {
		w    *rtl.Wire
		want string
	}{
		{b.Register(3, "counter"), "counter/3R"},
		{b.Input(1, "a"), "a/1I"},
		{b.Output(16, "res"), "res/16O"},
		{b.Wire(2, "pl"), "pl/2W"},
	}
	for _, tt := range tests {
		if got := tt.w.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRegisterNext(t *testing.T) {
	b := rtl.New()
	r := b.Register(4, "r")
	if r.NextWire() != nil {
		t.Fatal("fresh register has a next wire")
	}
	src := b.Input(4, "in")
	r.Next(src)
	if r.NextWire() != src {
		t.Fatal("NextWire does not return the assigned source")
	}
	mustPanic(t, "double next", func() { r.Next(src) })
	mustPanic(t, "next on plain wire", func() { b.Wire(4, "p").Next(src) })
}

func TestCrossBlockWiring(t *testing.T) {
	b1, b2 := rtl.New(), rtl.New()
	a := b1.Input(4, "a")
	c := b2.Input(4, "b")
	mustPanic(t, "cross-block op", func() { a.And(c) })
	mustPanic(t, "cross-block connect", func() { b1.Wire(4, "w").Connect(c) })
}

func TestKindConnectRules(t *testing.T) {
	b := rtl.New()
	in := b.Input(4, "in")
	src := b.Wire(4, "src")
	src.Connect(b.Const(3, 4))
	mustPanic(t, "drive input", func() { in.Connect(src) })
	mustPanic(t, "drive const", func() { b.Const(1, 1).Connect(src) })
	mustPanic(t, "connect register", func() { b.Register(4, "r").Connect(src) })
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected a panic", name)
		}
	}()
	f()
}
