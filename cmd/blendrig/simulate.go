package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/milk9111/blendrig/driver"
	"github.com/milk9111/blendrig/metrics"
	"github.com/milk9111/blendrig/ragdoll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <statemachine>",
	Short: "Run a state machine headless and print its state changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulate(cmd, args[0])
	},
}

func init() {
	f := simulateCmd.Flags()
	f.String("model", "", "glTF file with the skeleton and clips")
	f.String("script", "", "tengo driver script")
	f.String("ragdoll", "", "ragdoll definition (yaml)")
	f.Duration("duration", 5*time.Second, "simulated time")
	f.Int("fps", 60, "ticks per simulated second")
	f.StringToString("param", nil, "initial parameter values, name=value")
	f.Bool("metrics", false, "print collected metrics at the end")
	_ = simulateCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, machine string) error {
	f := cmd.Flags()
	model, _ := f.GetString("model")
	scriptPath, _ := f.GetString("script")
	ragdollPath, _ := f.GetString("ragdoll")
	total, _ := f.GetDuration("duration")
	fps, _ := f.GetInt("fps")
	params, _ := f.GetStringToString("param")
	withMetrics, _ := f.GetBool("metrics")
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}

	var m *metrics.Collector
	reg := prometheus.NewRegistry()
	if withMetrics {
		m = metrics.New()
		if err := m.Register(reg); err != nil {
			return err
		}
	}

	r, err := newRig(cmd, model, machine, m)
	if err != nil {
		return err
	}
	for name, raw := range params {
		var v float32
		if _, err := fmt.Sscan(raw, &v); err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
		if err := r.anim.Params().Set(name, v); err != nil {
			return err
		}
	}
	if ragdollPath != "" {
		spec, err := ragdoll.LoadSpec(ragdollPath)
		if err != nil {
			return err
		}
		if _, err := r.eng.CreateRagdoll(r.anim, spec); err != nil {
			return err
		}
	}
	if scriptPath != "" {
		s, err := driver.Load(scriptPath, r.anim, r.log)
		if err != nil {
			return err
		}
		r.eng.AddDriver(s)
	}

	out := cmd.OutOrStdout()
	dt := float32(1) / float32(fps)
	ticks := int(total.Seconds() * float64(fps))
	state, next := r.anim.CurrentState(), ""
	fmt.Fprintf(out, "%8.3fs %s\n", float32(0), state)
	for i := 0; i < ticks; i++ {
		r.eng.Tick(dt)
		now := r.eng.Clock().Now()
		if n := r.anim.NextState(); n != next {
			if n != "" {
				tr, _ := r.anim.Pending()
				fmt.Fprintf(out, "%8.3fs %s -> %s (%s %.2fs)\n", now, state, n, tr.Type, tr.Duration)
			}
			next = n
		}
		if s := r.anim.CurrentState(); s != state {
			fmt.Fprintf(out, "%8.3fs %s\n", now, s)
			state = s
		}
	}

	if withMetrics {
		return printMetrics(cmd, reg)
	}
	return nil
}

func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := ""
			for _, lp := range metric.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				fmt.Fprintf(out, "%s%s %g\n", mf.GetName(), labels, metric.GetCounter().GetValue())
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				fmt.Fprintf(out, "%s%s count=%d sum=%gs\n", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}
