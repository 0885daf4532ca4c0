package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/instant-demo/demopool/internal/health"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pool counters and the health status",
	Long: `Display one aggregate sample over the registry: instance counters,
client statistics, and the severity-ranked health status.

The default output is human-readable; --json emits the structured report
and --csv one line-oriented sample row (as appended by the daemon).`,
	RunE: runStatsReport,
}

var (
	statsJSON bool
	statsCSV  bool
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output the report as JSON")
	statsCmd.Flags().BoolVar(&statsCSV, "csv", false, "Output the report as one CSV row")
}

func runStatsReport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rep, err := a.eval.Report(cmd.Context())
	if err != nil {
		return err
	}

	switch {
	case statsJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case statsCSV:
		w := csv.NewWriter(os.Stdout)
		if err := w.Write(rep.CSVRow()); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	default:
		printStatsText(rep, a.cfg.Pool.InstanceLimit)
		return nil
	}
}

var (
	statsOKStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	statsWarnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statsCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	statsLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printStatsText(rep *health.Report, limit int) {
	fmt.Println()
	fmt.Println("POOL STATUS")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("%s %s\n", statsLabelStyle.Render("Status:"), renderStatus(rep.Status))
	fmt.Printf("%s %s\n", statsLabelStyle.Render("Sampled:"), rep.Time.Format(time.DateTime))
	fmt.Println()

	fmt.Println("INSTANCES")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Active:    %d / %d\n", rep.Active, limit)
	fmt.Printf("Prepared:  %d\n", rep.Prepared)
	fmt.Printf("Hot:       %d\n", rep.Hot)
	fmt.Printf("Expired:   %d\n", rep.Expired)
	if rep.Orphaned > 0 {
		fmt.Printf("%s  %d\n", statsWarnStyle.Render("Orphaned:"), rep.Orphaned)
	}
	fmt.Printf("Ever made: %d\n", rep.NumTotal)
	fmt.Println()

	fmt.Println("CLIENTS")
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Distinct:   %d\n", rep.Clients)
	fmt.Printf("Avg/client: %.2f\n", rep.AvgPerClient)
	if rep.OldestActive != nil {
		fmt.Printf("Oldest:     %s\n", rep.OldestActive.Format(time.DateTime))
	}
	if rep.LatestActive != nil {
		fmt.Printf("Latest:     %s\n", rep.LatestActive.Format(time.DateTime))
	}
	fmt.Println()
}

func renderStatus(status string) string {
	switch {
	case status == health.StatusOK:
		return statsOKStyle.Render(status)
	case strings.HasPrefix(status, "CRITICAL"):
		return statsCriticalStyle.Render(status)
	default:
		return statsWarnStyle.Render(status)
	}
}
