package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/milk9111/blendrig/animator"
	"github.com/milk9111/blendrig/engine"
	"github.com/milk9111/blendrig/logging"
	"github.com/milk9111/blendrig/metrics"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "blendrig",
	Short: "blendrig checks and runs skeletal animation state machines",
	Long: `blendrig loads a glTF skeleton with its clips and a state machine document,
then validates, inspects or simulates it without a window.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "engine config file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides the config)")
}

// rig is an engine with one imported model and one animator for it.
type rig struct {
	eng  *engine.Engine
	anim *animator.Animator
	log  *slog.Logger
}

func newEngine(cmd *cobra.Command, m *metrics.Collector) (*engine.Engine, *slog.Logger, error) {
	cfg := engine.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = engine.LoadConfig(path); err != nil {
			return nil, nil, err
		}
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel))
	return engine.New(cfg, engine.Options{Log: log, Metrics: m}), log, nil
}

// newRig imports model and loads machine into an animator named after the
// model's skeleton. An empty machine leaves the animator without states.
func newRig(cmd *cobra.Command, model, machine string, m *metrics.Collector) (*rig, error) {
	eng, log, err := newEngine(cmd, m)
	if err != nil {
		return nil, err
	}
	asset, err := eng.ImportModel(model)
	if err != nil {
		return nil, err
	}
	anim, err := eng.CreateAnimator(asset.Skeleton.Name, asset.Skeleton)
	if err != nil {
		return nil, err
	}
	if machine != "" {
		if err := eng.LoadStateMachine(anim, machine); err != nil {
			return nil, err
		}
	}
	return &rig{eng: eng, anim: anim, log: log}, nil
}
