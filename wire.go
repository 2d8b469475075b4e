// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"math/big"

	"github.com/pkg/errors"
)

// Kind distinguishes the wire variants of the netlist.
//
type Kind uint8

// Wire kinds.
const (
	Plain Kind = iota // ordinary internal wire
	Input             // driven by the caller each cycle, never by a net
	Output            // read by the caller, never by a net
	Const             // holds a fixed value
	Register          // holds state across cycles, written via Next
)

var kindCode = [...]byte{Plain: 'W', Input: 'I', Output: 'O', Const: 'C', Register: 'R'}

// A Wire is a named, fixed-width bundle of bit signals: the value node of
// the netlist graph. Bit 0 is the least significant bit. Wires are created
// through Block constructors and belong to exactly one Block.
//
type Wire struct {
	name  string
	width int // 0 while still to be inferred (plain wires only)
	kind  Kind
	block *Block
	val   *big.Int // Const only
	next  *Net     // Register only: the single OpRegister net, once set
	named bool     // name given by the caller, not generated

	// index is the wire's position in its block, used by the simulator.
	index int
}

// Name returns the wire's name, unique within its Block.
func (w *Wire) Name() string { return w.name }

// BitWidth returns the wire's width in bits, or 0 if the width has not
// been inferred yet.
func (w *Wire) BitWidth() int { return w.width }

// Kind returns the wire variant.
func (w *Wire) Kind() Kind { return w.kind }

// Block returns the block owning this wire.
func (w *Wire) Block() *Block { return w.block }

// ConstValue returns the value of a Const wire.
func (w *Wire) ConstValue() *big.Int {
	if w.kind != Const {
		panic(errors.Errorf("rtl: wire %q is not a constant", w.name))
	}
	return new(big.Int).Set(w.val)
}

// String renders the wire as name/widthK where K is the kind code, for
// example counter/3R.
func (w *Wire) String() string {
	buf := make([]byte, 0, len(w.name)+4)
	buf = append(buf, w.name...)
	buf = append(buf, '/')
	buf = appendInt(buf, w.width)
	buf = append(buf, kindCode[w.kind])
	return string(buf)
}

func appendInt(buf []byte, n int) []byte {
	if n >= 10 {
		buf = appendInt(buf, n/10)
	}
	return append(buf, byte('0'+n%10))
}

// Wire creates a plain wire of the given width. A width of 0 defers the
// width until the first unconditional Connect; any other wire kind
// requires a positive width. An empty name allocates a temporary name.
//
func (b *Block) Wire(width int, name string) *Wire {
	if width < 0 {
		panic(errors.Errorf("rtl: negative bitwidth %d for wire %q", width, name))
	}
	return b.newWire(Plain, width, name)
}

// Input creates an input wire. The caller must supply its value on every
// simulation step.
func (b *Block) Input(width int, name string) *Wire {
	mustHaveWidth(width, name)
	return b.newWire(Input, width, name)
}

// Output creates an output wire. Outputs may be connected to but are never
// read by other nets.
func (b *Block) Output(width int, name string) *Wire {
	mustHaveWidth(width, name)
	return b.newWire(Output, width, name)
}

// Register creates a register wire. Its value each cycle is the value its
// Next expression held at the end of the previous cycle; a register whose
// Next is never assigned holds its previous value forever.
func (b *Block) Register(width int, name string) *Wire {
	mustHaveWidth(width, name)
	return b.newWire(Register, width, name)
}

// Const creates a constant wire holding val. A width of 0 infers the
// minimal width that can represent val (at least 1 bit).
func (b *Block) Const(val uint64, width int) *Wire {
	return b.ConstBig(new(big.Int).SetUint64(val), width)
}

// ConstSigned creates a constant from the two's complement representation
// of val in the given width, which must be explicit for negative values.
func (b *Block) ConstSigned(val int64, width int) *Wire {
	if val >= 0 {
		return b.Const(uint64(val), width)
	}
	if width <= 0 {
		panic(errors.New("rtl: negative constants must have an explicit bitwidth"))
	}
	if val>>(uint(width)-1) != -1 {
		panic(errors.Errorf("rtl: constant %d does not fit in %d bits", val, width))
	}
	mask := new(big.Int).Lsh(big.NewInt(1), uint(width))
	mask.Sub(mask, big.NewInt(1))
	return b.ConstBig(new(big.Int).And(big.NewInt(val), mask), width)
}

// ConstBig is Const for values wider than 64 bits. val must be
// non-negative.
func (b *Block) ConstBig(val *big.Int, width int) *Wire {
	if val.Sign() < 0 {
		panic(errors.New("rtl: ConstBig requires a non-negative value (use ConstSigned)"))
	}
	if width == 0 {
		width = val.BitLen()
		if width == 0 {
			width = 1
		}
	}
	if width < 0 {
		panic(errors.Errorf("rtl: negative bitwidth %d for constant", width))
	}
	if val.BitLen() > width {
		panic(errors.Errorf("rtl: constant %s does not fit in %d bits", val, width))
	}
	w := b.newWire(Const, width, b.nextConstName(val))
	w.val = new(big.Int).Set(val)
	return w
}

func mustHaveWidth(width int, name string) {
	if width <= 0 {
		panic(errors.Errorf("rtl: bitwidth must be >= 1, got %d for %q", width, name))
	}
}

// Connect drives dst with the value of src through a connect net. dst must
// be a plain wire or an Output and must not already have a driver. src is
// zero-extended or truncated to dst's width; a dst of deferred width
// adopts src's width.
//
func (dst *Wire) Connect(src *Wire) {
	if dst.block.condOpen {
		// inside a conditional scope plain Connect would bypass the
		// priority lowering
		panic(errors.Errorf("rtl: unconditional connect to %q inside a conditional scope", dst.name))
	}
	dst.connect(src)
}

func (dst *Wire) connect(src *Wire) {
	sameBlock(dst, src)
	switch dst.kind {
	case Input:
		panic(errors.Errorf("rtl: input %q cannot be driven internally", dst.name))
	case Const:
		panic(errors.Errorf("rtl: constant %q cannot be assigned", dst.name))
	case Register:
		panic(errors.Errorf("rtl: register %q must be assigned through Next", dst.name))
	}
	if dst.width == 0 {
		dst.width = src.mustWidth()
	}
	src = src.coerce(dst.width)
	dst.block.addNet(&Net{Op: OpConnect, Args: []*Wire{src}, Dests: []*Wire{dst}})
}

// Next assigns the register's next-cycle value. It may be called once per
// register; the value committed at each clock edge is src as evaluated
// during the cycle, zero-extended or truncated to the register's width.
//
func (r *Wire) Next(src *Wire) {
	if r.block.condOpen {
		panic(errors.Errorf("rtl: unconditional Next on %q inside a conditional scope", r.name))
	}
	r.setNext(src)
}

func (r *Wire) setNext(src *Wire) {
	sameBlock(r, src)
	if r.kind != Register {
		panic(errors.Errorf("rtl: Next called on non-register %q", r.name))
	}
	if r.next != nil {
		panic(errors.Errorf("rtl: register %q Next assigned more than once", r.name))
	}
	src = src.coerce(r.width)
	n := &Net{Op: OpRegister, Args: []*Wire{src}, Dests: []*Wire{r}}
	r.block.addNet(n)
	r.next = n
}

// NextWire returns the wire feeding the register's next value, or nil if
// Next has not been assigned.
func (r *Wire) NextWire() *Wire {
	if r.kind != Register {
		panic(errors.Errorf("rtl: NextWire called on non-register %q", r.name))
	}
	if r.next == nil {
		return nil
	}
	return r.next.Args[0]
}

// mustWidth returns the wire's width, panicking if it is still deferred.
func (w *Wire) mustWidth() int {
	if w.width == 0 {
		panic(errors.Errorf("rtl: wire %q used before its bitwidth is defined", w.name))
	}
	return w.width
}

// coerce returns a wire of exactly the given width: w itself, a
// zero-extension, or a truncation to the low bits.
func (w *Wire) coerce(width int) *Wire {
	switch ww := w.mustWidth(); {
	case ww == width:
		return w
	case ww < width:
		return w.ZeroExt(width)
	default:
		return w.Slice(0, width)
	}
}

func sameBlock(ws ...*Wire) *Block {
	b := ws[0].block
	for _, w := range ws[1:] {
		if w.block != b {
			panic(errors.Errorf("rtl: wires %q and %q belong to different blocks", ws[0].name, w.name))
		}
	}
	return b
}
