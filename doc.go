// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package rtl provides an in-memory netlist representation for digital logic
and a cycle-accurate simulator for it.

A design is built as a graph of typed, fixed-width bit-vector wires
(Wire handles of kind plain, Input, Output, Const or Register) connected
by primitive operations (Nets). The graph is owned by a Block, which is
the sole point of mutation and enforces the structural invariants of the
netlist. Higher level constructs lower onto the closed primitive op set:
operators synthesize new wires and nets, MemBlock builds memory read and
write port nets, and Conditional compiles nested prioritized
"when predicate, assign value" scopes into ordinary multiplexer chains.

	b := rtl.New()
	a := b.Input(1, "a")
	x := b.Input(1, "b")
	cin := b.Input(1, "cin")
	sum := b.Output(1, "sum")
	sum.Connect(a.Xor(x).Xor(cin))

A finished Block is executed by a Simulation (or the precompiled
FastSimulation, which is result-identical). Each Step accepts one value
per declared Input, evaluates every combinational net once in dependency
order, and then commits all register updates and enabled memory writes at
a single clock edge.

Graph construction functions panic with a descriptive error on structural
misuse (bad bitwidth, cross-block wiring, duplicate names); whole-graph
operations such as SanityCheck, NewSimulation and Step return errors.
*/
package rtl
