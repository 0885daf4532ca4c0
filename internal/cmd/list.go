package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/instant-demo/demopool/internal/registry"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances in the registry",
	RunE:  runList,
}

var (
	listActive   bool
	listPrepared bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listActive, "active", false, "Show only active instances")
	listCmd.Flags().BoolVar(&listPrepared, "prepared", false, "Show only prepared instances")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var filter registry.Filter
	switch {
	case listActive && listPrepared:
		return fmt.Errorf("--active and --prepared are mutually exclusive")
	case listActive:
		filter = registry.Active()
	case listPrepared:
		filter = registry.Prepared()
	}

	insts, err := a.mgr.All(filter)
	if err != nil {
		return err
	}
	if len(insts) == 0 {
		fmt.Println("No instances.")
		return nil
	}

	fmt.Printf("%-6s %-10s %-9s %-20s %-12s %s\n", "ID", "NAME", "STATE", "CREATED", "CLIENT", "EXPIRES")
	fmt.Println(strings.Repeat("─", 72))
	for _, inst := range insts {
		rec := inst.Record()

		state := "active"
		created := "-"
		client := "-"
		if inst.IsPrepared() {
			state = "prepared"
		} else {
			created = rec.Created.Format(time.DateTime)
			client = *rec.IPHash
		}

		fmt.Printf("%-6d %-10s %-9s %-20s %-12s %s\n",
			inst.ID(), inst.Name(), state, created, client, inst.ExpiresIn())
	}
	return nil
}
