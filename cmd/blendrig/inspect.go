package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/milk9111/blendrig/loader"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <model>",
	Short: "List the joints and clips of a glTF model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		machine, _ := cmd.Flags().GetString("machine")
		dump, _ := cmd.Flags().GetBool("dump")
		return runInspect(cmd, args[0], machine, dump)
	},
}

func init() {
	inspectCmd.Flags().String("machine", "", "state machine document to print as well")
	inspectCmd.Flags().Bool("dump", false, "dump the decoded structures in full")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, model, machine string, dump bool) error {
	r, err := newRig(cmd, model, "", nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	sk := r.anim.Skeleton()

	fmt.Fprintf(out, "skeleton %q (id %d), %d joints\n", sk.Name, sk.ID, sk.JointCount())
	for i, j := range sk.Joints {
		parent := "-"
		if j.Parent >= 0 {
			parent = sk.Joints[j.Parent].Name
		}
		fmt.Fprintf(out, "  %3d %-24s parent %s\n", i, j.Name, parent)
	}

	names := r.eng.Clips().Names()
	fmt.Fprintf(out, "%d clips\n", len(names))
	for _, name := range names {
		c, _ := r.eng.Clips().Clip(name)
		fmt.Fprintf(out, "  %-24s %.3fs\n", name, c.Duration)
	}

	var doc *loader.Document
	if machine != "" {
		if doc, err = loader.LoadFile(machine); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d params, %d states in %s\n", len(doc.Params), len(doc.States), machine)
		for _, s := range doc.States {
			fmt.Fprintf(out, "  %-24s %s, %d transitions\n", s.Name, treeType(s.Tree), len(s.Transitions))
		}
	}

	if dump {
		cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
		cfg.Fdump(out, sk)
		if doc != nil {
			cfg.Fdump(out, doc)
		}
	}
	return nil
}

func treeType(n *loader.NodeDoc) string {
	if n == nil {
		return "no tree"
	}
	return n.Type
}
