// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"github.com/pkg/errors"
)

// Binary operators extend the shorter operand to the longer operand's
// width with zeros (use SignExt explicitly for a signed extension) and
// synthesize a fresh destination wire. Result widths:
//
//	And, Or, Xor        max(len(a), len(b))
//	Add, Sub            max(len(a), len(b)) + 1
//	Mul                 2 * max(len(a), len(b))
//	Lt, Gt, Eq          1
//
// Operands are never mutated; every call grows the graph.

// And returns the bitwise AND of w and o.
func (w *Wire) And(o *Wire) *Wire { return w.binop(OpAnd, o) }

// Or returns the bitwise OR of w and o.
func (w *Wire) Or(o *Wire) *Wire { return w.binop(OpOr, o) }

// Xor returns the bitwise XOR of w and o.
func (w *Wire) Xor(o *Wire) *Wire { return w.binop(OpXor, o) }

// Add returns w + o, one bit wider than the wider operand.
func (w *Wire) Add(o *Wire) *Wire { return w.binop(OpAdd, o) }

// Sub returns w - o modulo the result width, one bit wider than the wider
// operand.
func (w *Wire) Sub(o *Wire) *Wire { return w.binop(OpSub, o) }

// Mul returns w * o, twice as wide as the wider operand.
func (w *Wire) Mul(o *Wire) *Wire { return w.binop(OpMul, o) }

// Lt returns the single-bit unsigned comparison w < o.
func (w *Wire) Lt(o *Wire) *Wire { return w.binop(OpLT, o) }

// Gt returns the single-bit unsigned comparison w > o.
func (w *Wire) Gt(o *Wire) *Wire { return w.binop(OpGT, o) }

// Eq returns the single-bit comparison w == o.
func (w *Wire) Eq(o *Wire) *Wire { return w.binop(OpEQ, o) }

// Ne returns the single-bit comparison w != o.
func (w *Wire) Ne(o *Wire) *Wire { return w.Eq(o).Not() }

// Lte returns the single-bit unsigned comparison w <= o.
func (w *Wire) Lte(o *Wire) *Wire { return w.Lt(o).Or(w.Eq(o)) }

// Gte returns the single-bit unsigned comparison w >= o.
func (w *Wire) Gte(o *Wire) *Wire { return w.Gt(o).Or(w.Eq(o)) }

func (w *Wire) binop(op Op, o *Wire) *Wire {
	b := sameBlock(w, o)
	a, c := matchWidth(w, o)
	width := a.width
	switch op {
	case OpAdd, OpSub:
		width++
	case OpMul:
		width *= 2
	case OpLT, OpGT, OpEQ:
		width = 1
	}
	dst := b.Wire(width, "")
	b.addNet(&Net{Op: op, Args: []*Wire{a, c}, Dests: []*Wire{dst}})
	return dst
}

// Not returns the bitwise complement of w, same width.
func (w *Wire) Not() *Wire {
	dst := w.block.Wire(w.mustWidth(), "")
	w.block.addNet(&Net{Op: OpNot, Args: []*Wire{w}, Dests: []*Wire{dst}})
	return dst
}

// Bit returns the single bit at index i (bit 0 is the LSB).
func (w *Wire) Bit(i int) *Wire {
	return w.Pick(i)
}

// MSB returns the most significant bit of w.
func (w *Wire) MSB() *Wire {
	return w.Pick(w.mustWidth() - 1)
}

// Slice returns bits [lo, hi) of w as a new wire of width hi-lo.
func (w *Wire) Slice(lo, hi int) *Wire {
	ww := w.mustWidth()
	if lo < 0 || hi > ww || lo >= hi {
		panic(errors.Errorf("rtl: slice [%d:%d) out of range for %d-bit wire %q", lo, hi, ww, w.name))
	}
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return w.Pick(idx...)
}

// Pick returns a new wire built from the listed bit indices of w, index 0
// of the list becoming the LSB of the result. Repeats are accepted.
func (w *Wire) Pick(indices ...int) *Wire {
	ww := w.mustWidth()
	if len(indices) == 0 {
		panic(errors.Errorf("rtl: empty bit selection on %q", w.name))
	}
	for _, i := range indices {
		if i < 0 || i >= ww {
			panic(errors.Errorf("rtl: bit index %d out of range for %d-bit wire %q", i, ww, w.name))
		}
	}
	dst := w.block.Wire(len(indices), "")
	sel := make([]int, len(indices))
	copy(sel, indices)
	w.block.addNet(&Net{Op: OpSelect, Sel: sel, Args: []*Wire{w}, Dests: []*Wire{dst}})
	return dst
}

// ZeroExt returns w zero-extended to the given width.
func (w *Wire) ZeroExt(width int) *Wire {
	return w.extend(width, false)
}

// SignExt returns w extended to the given width by replicating its most
// significant bit.
func (w *Wire) SignExt(width int) *Wire {
	return w.extend(width, true)
}

func (w *Wire) extend(width int, signed bool) *Wire {
	ww := w.mustWidth()
	if width < ww {
		panic(errors.Errorf("rtl: cannot extend %d-bit wire %q down to %d bits", ww, w.name, width))
	}
	if width == ww {
		return w
	}
	n := width - ww
	var ext *Wire
	if signed {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = ww - 1
		}
		ext = w.Pick(idx...)
	} else {
		ext = w.block.Const(0, n)
	}
	return Concat(ext, w)
}

// Truncate returns the low width bits of w.
func (w *Wire) Truncate(width int) *Wire {
	if width > w.mustWidth() {
		panic(errors.Errorf("rtl: cannot truncate %d-bit wire %q up to %d bits", w.width, w.name, width))
	}
	if width == w.width {
		return w
	}
	return w.Slice(0, width)
}

// Concat concatenates the given wires into one wire whose width is the sum
// of the argument widths. The first argument occupies the most significant
// position.
//
func Concat(ws ...*Wire) *Wire {
	if len(ws) == 0 {
		panic(errors.New("rtl: Concat requires at least one wire"))
	}
	if len(ws) == 1 {
		return ws[0]
	}
	b := sameBlock(ws...)
	width := 0
	for _, w := range ws {
		width += w.mustWidth()
	}
	dst := b.Wire(width, "")
	args := make([]*Wire, len(ws))
	copy(args, ws)
	b.addNet(&Net{Op: OpConcat, Args: args, Dests: []*Wire{dst}})
	return dst
}

// Mux returns falseCase when the single-bit sel is 0 and trueCase when it
// is 1. The two cases are zero-extended to a common width.
//
func Mux(sel, falseCase, trueCase *Wire) *Wire {
	b := sameBlock(sel, falseCase, trueCase)
	if sel.mustWidth() != 1 {
		panic(errors.Errorf("rtl: mux select %q must be a single bit", sel.name))
	}
	f, t := matchWidth(falseCase, trueCase)
	dst := b.Wire(f.width, "")
	b.addNet(&Net{Op: OpMux, Args: []*Wire{sel, f, t}, Dests: []*Wire{dst}})
	return dst
}

// Select returns ins[sel] built as a tree of 2-way muxes. The number of
// inputs must be exactly 2^len(sel).
//
func Select(sel *Wire, ins ...*Wire) *Wire {
	if 1<<uint(sel.mustWidth()) != len(ins) {
		panic(errors.Errorf("rtl: select line %q is %d bits but selecting from %d inputs",
			sel.name, sel.width, len(ins)))
	}
	if sel.width == 1 {
		return Mux(sel, ins[0], ins[1])
	}
	half := len(ins) / 2
	low := sel.Slice(0, sel.width-1)
	return Mux(sel.MSB(), Select(low, ins[:half]...), Select(low, ins[half:]...))
}

// Any returns a single bit that is 1 when any of the single-bit arguments
// is 1.
func Any(ws ...*Wire) *Wire { return reduce((*Wire).Or, ws) }

// All returns a single bit that is 1 when every single-bit argument is 1.
func All(ws ...*Wire) *Wire { return reduce((*Wire).And, ws) }

// Parity returns the XOR of all the single-bit arguments.
func Parity(ws ...*Wire) *Wire { return reduce((*Wire).Xor, ws) }

func reduce(f func(*Wire, *Wire) *Wire, ws []*Wire) *Wire {
	if len(ws) == 0 {
		panic(errors.New("rtl: bit reduction requires at least one wire"))
	}
	for _, w := range ws {
		if w.mustWidth() != 1 {
			panic(errors.Errorf("rtl: bit reduction argument %q must be a single bit", w.name))
		}
	}
	acc := ws[0]
	for _, w := range ws[1:] {
		acc = f(acc, w)
	}
	return acc
}

// MatchBitwidth zero-extends both wires to the width of the wider one.
func MatchBitwidth(a, b *Wire) (*Wire, *Wire) {
	return matchWidth(a, b)
}

func matchWidth(a, b *Wire) (*Wire, *Wire) {
	aw, bw := a.mustWidth(), b.mustWidth()
	switch {
	case aw < bw:
		return a.ZeroExt(bw), b
	case bw < aw:
		return a, b.ZeroExt(aw)
	}
	return a, b
}
