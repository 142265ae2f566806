package main

import (
	"fmt"

	"github.com/milk9111/blendrig/ragdoll"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <statemachine>",
	Short: "Check that every state's blend tree can be evaluated",
	Long: `Loads the model and the state machine, then reports each state whose tree
is structurally invalid and each transition that names a missing state.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		ragdollPath, _ := cmd.Flags().GetString("ragdoll")
		return runValidate(cmd, model, args[0], ragdollPath)
	},
}

func init() {
	validateCmd.Flags().String("model", "", "glTF file with the skeleton and clips")
	validateCmd.Flags().String("ragdoll", "", "ragdoll definition (yaml) for states that sample one")
	_ = validateCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, model, machine, ragdollPath string) error {
	r, err := newRig(cmd, model, machine, nil)
	if err != nil {
		return err
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

	out := cmd.OutOrStdout()
	problems := 0
	for _, name := range r.anim.States() {
		s, _ := r.anim.State(name)
		if err := s.Tree.Validate(); err != nil {
			fmt.Fprintf(out, "state %q: %v\n", name, err)
			problems++
		}
		for _, tr := range s.Transitions() {
			if _, ok := r.anim.State(tr.Destination); !ok {
				fmt.Fprintf(out, "state %q: transition %q goes to unknown state %q\n", name, tr.Name, tr.Destination)
				problems++
			}
		}
	}
	if problems > 0 {
		return fmt.Errorf("%d problem(s) in %s", problems, machine)
	}
	fmt.Fprintf(out, "%s: %d states ok\n", machine, len(r.anim.States()))
	return nil
}
