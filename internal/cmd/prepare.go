package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Top up the prepared instance pool",
	Long: `Prepare copies the template into fresh unassigned instances until the
prepared pool reaches its target size.

Without --count the pool auto-sizes to roughly 10% of the active load,
with a floor of 10 and a ceiling of 10% of the instance limit. The total
instance count never exceeds the limit either way.`,
	RunE: runPrepare,
}

var prepareCount int

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().IntVar(&prepareCount, "count", 0, "Explicit pool target (0 = auto-size)")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	created, err := a.mgr.Prepare(cmd.Context(), prepareCount)
	if err != nil {
		return err
	}

	if created == 0 {
		fmt.Println("Prepared pool already at target.")
		return nil
	}
	fmt.Printf("Prepared %d new instance(s).\n", created)
	return nil
}
