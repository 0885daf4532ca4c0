package cmd

import (
	"context"
	"fmt"

	"github.com/instant-demo/demopool/internal/errors"
	"github.com/instant-demo/demopool/internal/hooks"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete every active instance past its expiry",
	Long: `Cleanup sweeps the active instances and deletes each one whose expiry
has passed, whichever of the absolute and the inactivity budget ran out
first. After a sweep that removed at least one instance, the template's
cleanup hook is invoked once.`,
	RunE: runCleanupSweep,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanupSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	deleted, err := sweep(cmd.Context(), a)
	if err != nil {
		return err
	}

	if deleted == 0 {
		fmt.Println("No expired instances.")
		return nil
	}
	fmt.Printf("Deleted %d expired instance(s).\n", deleted)
	return nil
}

// sweep runs one cleanup pass and, if it deleted anything, the template's
// cleanup hook. Shared with the daemon's periodic job.
func sweep(ctx context.Context, a *app) (int, error) {
	deleted, err := a.mgr.Cleanup(ctx)
	if err != nil {
		return deleted, err
	}

	if deleted > 0 {
		if _, err := a.run.Run(ctx, a.dirs.TemplateRoot, hooks.EventCleanup); err != nil {
			if !errors.Is(err, errors.ErrHookNotFound) {
				return deleted, fmt.Errorf("cleanup hook: %w", err)
			}
		}
	}
	return deleted, nil
}
