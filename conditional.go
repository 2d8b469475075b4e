// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"github.com/pkg/errors"
)

// Conditional opens a conditional-assignment scope on b, runs body, and
// lowers the recorded prioritized updates into multiplexer chains when
// body returns. Inside body, predicate sub-scopes are opened with
// c.When and c.Otherwise, and destinations are updated with c.Connect,
// c.Next and c.Write:
//
//	rtl.Conditional(b, func(c *rtl.Cond) {
//		c.When(reqRefund, func() {
//			c.Next(state, refund)
//		})
//		c.When(tokenIn, func() {
//			c.When(state.Eq(wait), func() { c.Next(state, tok1) })
//			c.Otherwise(func() { c.Next(state, refund) })
//		})
//	})
//
// The first-listed sibling at a nesting level has the highest priority,
// an inner predicate is implicitly ANDed with every enclosing predicate,
// and Otherwise matches exactly when none of its earlier siblings did.
// A destination updated by no matching condition keeps its previous
// value (registers) or reads 0 (wires).
//
// Conditional scopes must not nest; sibling Conditional calls on the same
// block compile independently.
//
func Conditional(b *Block, body func(c *Cond)) {
	if b.condOpen {
		panic(errors.New("rtl: conditional scopes cannot nest"))
	}
	b.condOpen = true
	defer func() { b.condOpen = false }()

	c := &Cond{
		block:   b,
		frames:  []*frame{{}},
		updates: make(map[*Wire][]predVal),
	}
	body(c)
	c.finalize()
}

// A Cond records the state of one open conditional-assignment scope: the
// stack of active predicate frames and, per destination, the ordered list
// of (effective predicate, value) pairs collected so far.
//
type Cond struct {
	block  *Block
	frames []*frame
	done   bool

	order   []*Wire
	updates map[*Wire][]predVal
	writes  []condWrite
}

// a frame holds the sibling predicates declared so far at one nesting
// level; a nil tail entry marks an Otherwise.
type frame struct {
	preds     []*Wire
	otherwise bool
}

type predVal struct {
	pred, val *Wire
}

type condWrite struct {
	mem                      *MemBlock
	pred, addr, data, enable *Wire
}

// When opens a predicate sub-scope: updates recorded inside body apply
// when pred holds and no earlier sibling at this level matched. pred must
// be a single bit.
//
func (c *Cond) When(pred *Wire, body func()) {
	c.ensureOpen()
	if pred.block != c.block {
		panic(errors.Errorf("rtl: predicate %q belongs to a different block", pred.name))
	}
	if pred.mustWidth() != 1 {
		panic(errors.Errorf("rtl: condition predicate %q must be a single bit", pred.name))
	}
	top := c.frames[len(c.frames)-1]
	if top.otherwise {
		panic(errors.New("rtl: no condition may follow an otherwise at the same level"))
	}
	top.preds = append(top.preds, pred)
	c.enter(body)
}

// Otherwise opens the fall-through sub-scope of the current level: its
// updates apply exactly when none of the sibling predicates matched.
//
func (c *Cond) Otherwise(body func()) {
	c.ensureOpen()
	top := c.frames[len(c.frames)-1]
	if top.otherwise {
		panic(errors.New("rtl: duplicate otherwise at the same level"))
	}
	if len(top.preds) == 0 && len(c.frames) == 1 {
		panic(errors.New("rtl: otherwise without a preceding condition"))
	}
	top.preds = append(top.preds, nil)
	top.otherwise = true
	c.enter(body)
}

func (c *Cond) enter(body func()) {
	c.frames = append(c.frames, &frame{})
	defer func() { c.frames = c.frames[:len(c.frames)-1] }()
	body()
}

// Connect records a conditional update of a plain wire or Output. The
// wire must already have a defined bitwidth: there is no unconditional
// path from which to infer one.
//
func (c *Cond) Connect(dst, val *Wire) {
	c.ensureInside()
	sameBlock(dst, val)
	switch dst.kind {
	case Input:
		panic(errors.Errorf("rtl: input %q cannot be driven internally", dst.name))
	case Const:
		panic(errors.Errorf("rtl: constant %q cannot be assigned", dst.name))
	case Register:
		panic(errors.Errorf("rtl: register %q must be assigned through Next", dst.name))
	}
	if dst.width == 0 {
		panic(errors.Errorf("rtl: wire %q assigned under a condition before its bitwidth is defined", dst.name))
	}
	c.record(dst, val.coerce(dst.width))
}

// Next records a conditional update of a register's next-cycle value.
func (c *Cond) Next(reg, val *Wire) {
	c.ensureInside()
	sameBlock(reg, val)
	if reg.kind != Register {
		panic(errors.Errorf("rtl: Next called on non-register %q", reg.name))
	}
	if reg.next != nil {
		panic(errors.Errorf("rtl: register %q already has an unconditional Next", reg.name))
	}
	c.record(reg, val.coerce(reg.width))
}

// Write records a conditional memory write: the port's enable is ANDed
// with the effective predicate of the enclosing conditions. A nil enable
// writes whenever the predicate matches.
//
func (c *Cond) Write(mem *MemBlock, addr, data, enable *Wire) {
	c.ensureInside()
	if mem.block != c.block {
		panic(errors.Errorf("rtl: memory %q belongs to a different block", mem.name))
	}
	addr, data, enable = mem.writePort(addr, data, enable)
	c.writes = append(c.writes, condWrite{
		mem:    mem,
		pred:   c.currentSelect(),
		addr:   addr,
		data:   data,
		enable: enable,
	})
}

func (c *Cond) record(dst, val *Wire) {
	if _, ok := c.updates[dst]; !ok {
		c.order = append(c.order, dst)
	}
	c.updates[dst] = append(c.updates[dst], predVal{pred: c.currentSelect(), val: val})
}

func (c *Cond) ensureOpen() {
	if c.done {
		panic(errors.New("rtl: conditional scope already closed"))
	}
}

func (c *Cond) ensureInside() {
	c.ensureOpen()
	if len(c.frames) < 2 {
		panic(errors.New("rtl: conditional connect outside an open condition"))
	}
}

// currentSelect returns the conjunction of the active predicates: for
// every open level, the negations of the earlier siblings and the level's
// own predicate (absent for an otherwise, which contributes only the
// negations).
func (c *Cond) currentSelect() *Wire {
	var sel *Wire
	and := func(a, b *Wire) *Wire {
		if a == nil {
			return b
		}
		return a.And(b)
	}
	// the innermost frame holds the (still empty) children of the scope
	// being recorded into; its predicate is the tail of the parent frame
	for _, f := range c.frames[:len(c.frames)-1] {
		for _, p := range f.preds[:len(f.preds)-1] {
			sel = and(sel, p.Not())
		}
		if last := f.preds[len(f.preds)-1]; last != nil {
			sel = and(sel, last)
		}
	}
	if sel == nil {
		panic(errors.New("rtl: empty condition"))
	}
	return sel
}

// finalize lowers the recorded updates. For each destination one mux
// chain is built folding from the last-declared pair to the first, so the
// first-declared update ends up as the outermost select. Memory writes
// become write ports gated by their effective predicate.
func (c *Cond) finalize() {
	c.done = true
	for _, dst := range c.order {
		pairs := c.updates[dst]
		var result *Wire
		if dst.kind == Register {
			result = dst // unmatched cycles keep the previous value
		} else {
			result = c.block.Const(0, dst.width)
		}
		for i := len(pairs) - 1; i >= 0; i-- {
			result = Mux(pairs[i].pred, result, pairs[i].val)
		}
		if dst.kind == Register {
			dst.setNext(result)
		} else {
			dst.connect(result)
		}
	}
	for _, w := range c.writes {
		enable := w.enable.And(w.pred)
		c.block.addNet(&Net{Op: OpMemWrite, Mem: w.mem, Args: []*Wire{w.addr, w.data, enable}})
	}
}
