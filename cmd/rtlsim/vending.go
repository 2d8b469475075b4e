// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rtlkit/rtl"
)

var (
	vendingTokens  string
	vendingRefunds string
)

// vending machine states
const (
	stWait = iota
	stTok1
	stTok2
	stTok3
	stDisp
	stRefund
)

var vendingCmd = &cobra.Command{
	Use:   "vending",
	Short: "simulate a three-token vending machine",
	Long: `Simulate a vending machine that dispenses after three tokens.
A refund request beats everything else; an unexpected token refunds too.
Token and refund inputs are given as bit strings, one character per cycle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := bitSeq(vendingTokens)
		if err != nil {
			return errors.Wrap(err, "--tokens")
		}
		refunds, err := bitSeq(vendingRefunds)
		if err != nil {
			return errors.Wrap(err, "--refunds")
		}
		if len(tokens) != len(refunds) {
			return errors.Errorf("input lengths differ: %d tokens, %d refunds", len(tokens), len(refunds))
		}

		b := buildVendingMachine()
		tr, err := rtl.NewTrace(b, "token_in", "req_refund", "state", "dispense", "refund")
		if err != nil {
			return err
		}
		sim, err := rtl.NewSimulation(b, rtl.WithTrace(tr))
		if err != nil {
			return err
		}
		for i := range tokens {
			err := sim.Step(map[string]uint64{"token_in": tokens[i], "req_refund": refunds[i]})
			if err != nil {
				return err
			}
		}
		return tr.Render(cmd.OutOrStdout())
	},
}

func buildVendingMachine() *rtl.Block {
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
	return b
}

func bitSeq(s string) ([]uint64, error) {
	if s == "" {
		return nil, errors.New("empty bit string")
	}
	out := make([]uint64, len(s))
	for i, c := range s {
		switch c {
		case '0':
			out[i] = 0
		case '1':
			out[i] = 1
		default:
			return nil, errors.Errorf("bit strings hold only 0 and 1, found %q", c)
		}
	}
	return out, nil
}

func init() {
	vendingCmd.Flags().StringVar(&vendingTokens, "tokens", "0010100111010000", "token_in bit string")
	vendingCmd.Flags().StringVar(&vendingRefunds, "refunds", "1100010000000000", "req_refund bit string")
	rootCmd.AddCommand(vendingCmd)
}
