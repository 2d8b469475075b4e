// Copyright 2024 The rtlkit Authors
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rtlkit/rtl"
)

var (
	counterCycles int
	counterWidth  int
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "simulate a free-running counter register",
	RunE: func(cmd *cobra.Command, args []string) error {
		if counterWidth < 1 || counterWidth > 64 {
			return errors.Errorf("counter width %d out of range [1,64]", counterWidth)
		}
		b := rtl.New()
		counter := b.Register(counterWidth, "counter")
		counter.Next(counter.Add(b.Const(1, 1)))

		tr, err := rtl.NewTrace(b)
		if err != nil {
			return err
		}
		sim, err := rtl.NewSimulation(b, rtl.WithTrace(tr))
		if err != nil {
			return err
		}
		for i := 0; i < counterCycles; i++ {
			if err := sim.Step(nil); err != nil {
				return err
			}
		}
		return tr.Render(cmd.OutOrStdout())
	},
}

func init() {
	counterCmd.Flags().IntVarP(&counterCycles, "cycles", "n", 10, "number of cycles to simulate")
	counterCmd.Flags().IntVarP(&counterWidth, "width", "w", 3, "counter bitwidth")
	rootCmd.AddCommand(counterCmd)
}
