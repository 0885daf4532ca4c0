package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the template and invalidate the prepared pool",
	Long: `Rebuild takes the exclusive template lock, runs the template's build
hook to replace the template tree, and then deletes every prepared
instance, since they are clones of the old tree.

The exclusive lock waits for all in-flight instance copies to finish and
blocks new copies until the rebuild completes. Active instances are not
touched; they keep their old trees until they expire.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.mgr.Rebuild(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Template rebuilt, prepared pool invalidated.")
	fmt.Println("Run 'demopool prepare' to re-warm the pool.")
	return nil
}
