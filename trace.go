// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package rtl

import (
	"io"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// A Trace records the values of a set of wires over the cycles of one
// simulation run. Attach it with WithTrace; after every step it stores
// the post-commit value of each traced wire, so a traced register shows
// the value it will hold during the next cycle.
//
type Trace struct {
	block *Block
	wires []*Wire
	byIdx map[string]int
	vals  [][]*big.Int // per wire, one value per cycle
}

// NewTrace creates a trace over the named wires of b. With no names it
// traces every wire the caller named explicitly, skipping the generated
// temporaries, in creation order.
//
func NewTrace(b *Block, names ...string) (*Trace, error) {
	t := &Trace{block: b, byIdx: make(map[string]int)}
	if len(names) == 0 {
		for _, w := range b.wires {
			if w.named {
				t.add(w)
			}
		}
		if len(t.wires) == 0 {
			return nil, errors.New("rtl: no named wires to trace")
		}
		return t, nil
	}
	for _, name := range names {
		w := b.byName[name]
		if w == nil {
			return nil, errors.Errorf("rtl: no wire named %q to trace", name)
		}
		if _, dup := t.byIdx[name]; dup {
			return nil, errors.Errorf("rtl: wire %q traced twice", name)
		}
		t.add(w)
	}
	return t, nil
}

func (t *Trace) add(w *Wire) {
	t.byIdx[w.name] = len(t.wires)
	t.wires = append(t.wires, w)
	t.vals = append(t.vals, nil)
}

func (t *Trace) record(st *simState) {
	for i, w := range t.wires {
		t.vals[i] = append(t.vals[i], new(big.Int).Set(st.vals[w.index]))
	}
}

// Len returns the number of recorded cycles.
func (t *Trace) Len() int {
	if len(t.vals) == 0 {
		return 0
	}
	return len(t.vals[0])
}

// BigValue returns the recorded value of the named wire at the given
// cycle.
func (t *Trace) BigValue(name string, cycle int) (*big.Int, error) {
	i, ok := t.byIdx[name]
	if !ok {
		return nil, errors.Errorf("rtl: wire %q is not traced", name)
	}
	if cycle < 0 || cycle >= len(t.vals[i]) {
		return nil, errors.Errorf("rtl: cycle %d outside the recorded range [0,%d)", cycle, len(t.vals[i]))
	}
	return new(big.Int).Set(t.vals[i][cycle]), nil
}

// Value is BigValue for values up to 64 bits.
func (t *Trace) Value(name string, cycle int) (uint64, error) {
	v, err := t.BigValue(name, cycle)
	if err != nil {
		return 0, err
	}
	if v.BitLen() > 64 {
		return 0, errors.Errorf("rtl: traced value of %q is wider than 64 bits, use BigValue", name)
	}
	return v.Uint64(), nil
}

// Render writes the trace as one line per wire, values in cycle order.
// Single-digit values are packed into a waveform-like string; anything
// wider switches the whole line to space-separated values:
//
//	count  01234567
//	sum    0 1 3 6 10 15 21 28
//
func (t *Trace) Render(w io.Writer) error {
	nameWidth := 0
	for _, tw := range t.wires {
		if len(tw.name) > nameWidth {
			nameWidth = len(tw.name)
		}
	}
	var sb strings.Builder
	for i, tw := range t.wires {
		sb.Reset()
		sb.WriteString(tw.name)
		sb.WriteString(strings.Repeat(" ", nameWidth-len(tw.name)+2))
		packed := true
		for _, v := range t.vals[i] {
			if v.Cmp(big.NewInt(10)) >= 0 {
				packed = false
				break
			}
		}
		for j, v := range t.vals[i] {
			if j > 0 && !packed {
				sb.WriteByte(' ')
			}
			sb.WriteString(v.String())
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}
