package health

import (
	"fmt"
	"strconv"
	"time"
)

// Report is one aggregate sample over the registry. NumTotal comes from the
// store's row-sequence counter, so it counts every instance ever created,
// not just the live rows.
type Report struct {
	Time     time.Time `json:"time"`
	Status   string    `json:"status"`
	NumTotal int64     `json:"num_total"`
	Active   int       `json:"active"`
	Hot      int       `json:"hot"`
	Expired  int       `json:"expired"`
	Prepared int       `json:"prepared"`
	// Orphaned counts rows whose instance directory is missing, the
	// leftover of a copy failure after the metadata commit.
	Orphaned     int        `json:"orphaned"`
	Clients      int        `json:"clients"`
	AvgPerClient float64    `json:"avg_per_client"`
	OldestActive *time.Time `json:"oldest_active,omitempty"`
	LatestActive *time.Time `json:"latest_active,omitempty"`
}

// CSVHeader returns the column names matching CSVRow, for the first line of
// a samples file.
func CSVHeader() []string {
	return []string{
		"time", "status", "num_total", "active", "hot", "expired",
		"prepared", "orphaned", "clients", "avg_per_client",
		"oldest_active", "latest_active",
	}
}

// CSVRow renders the report as one line-oriented sample.
func (r *Report) CSVRow() []string {
	return []string{
		r.Time.UTC().Format(time.RFC3339),
		r.Status,
		strconv.FormatInt(r.NumTotal, 10),
		strconv.Itoa(r.Active),
		strconv.Itoa(r.Hot),
		strconv.Itoa(r.Expired),
		strconv.Itoa(r.Prepared),
		strconv.Itoa(r.Orphaned),
		strconv.Itoa(r.Clients),
		fmt.Sprintf("%.2f", r.AvgPerClient),
		formatOptionalTime(r.OldestActive),
		formatOptionalTime(r.LatestActive),
	}
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
