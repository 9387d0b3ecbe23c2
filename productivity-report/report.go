package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jitsucom/backfill-runbooks/jitsubase/types"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPeriods leave of Jun-Sep 2025 splits history into before and after
const defaultPeriods = `{
  periods: [
    {name: "Q1 2024 (Feb-Apr)", months: ["2024-02", "2024-03", "2024-04"]}
    {name: "Q2 2024 (May-Jun)", months: ["2024-05", "2024-06"]}
    {name: "Q3 2024 (Jul-Sep)", months: ["2024-07", "2024-08", "2024-09"]}
    {name: "Q4 2024 (Oct-Dec)", months: ["2024-10", "2024-11", "2024-12"]}
    {name: "Q1 2025 (Jan-Mar)", months: ["2025-01", "2025-02", "2025-03"]}
    {name: "Q2 2025 (Apr-May)", months: ["2025-04", "2025-05"]}
    {name: "Q4 2025 (Oct-Dec, post-leave)", months: ["2025-10", "2025-11", "2025-12"]}
    {name: "Q1 2026 (Jan-Feb)", months: ["2026-01", "2026-02"]}
  ]
  comparison: "PRE-LEAVE vs POST-LEAVE COMPARISON"
  before: {
    name: "Pre-leave (Feb 2024 - May 2025)"
    months: ["2024-02", "2024-03", "2024-04", "2024-05", "2024-06", "2024-07", "2024-08", "2024-09",
      "2024-10", "2024-11", "2024-12", "2025-01", "2025-02", "2025-03", "2025-04", "2025-05"]
  }
  after: {
    name: "Post-leave (Oct 2025 - Feb 2026)"
    months: ["2025-10", "2025-11", "2025-12", "2026-01", "2026-02"]
  }
  exclude: ["2025-06", "2025-07", "2025-08", "2025-09"]
  exclude_label: "Jun-Sep 2025"
}`

type Period struct {
	Name   string   `mapstructure:"name"`
	Months []string `mapstructure:"months"`
}

type PeriodsConfig struct {
	Periods    []Period `mapstructure:"periods"`
	Comparison string   `mapstructure:"comparison"`
	Before     Period   `mapstructure:"before"`
	After      Period   `mapstructure:"after"`
	// Exclude months are ignored everywhere in the report
	Exclude      []string `mapstructure:"exclude"`
	ExcludeLabel string   `mapstructure:"exclude_label"`
}

// LoadPeriods reads HJSON periods config. Empty path returns built-in periods.
func LoadPeriods(path string) (*PeriodsConfig, error) {
	var data any = defaultPeriods
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading periods config %s: %w", path, err)
		}
		data = b
	}
	cfg := &PeriodsConfig{}
	if err := utils.ParseObject(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func (c *PeriodsConfig) validate() error {
	periods := append([]Period{c.Before, c.After}, c.Periods...)
	for _, p := range periods {
		for _, m := range p.Months {
			if _, err := utils.ParseMonth(m); err != nil {
				return fmt.Errorf("period %q: %w", p.Name, err)
			}
		}
	}
	for _, m := range c.Exclude {
		if _, err := utils.ParseMonth(m); err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
	}
	return nil
}

// PeriodStats totals of months that have data and are not excluded
type PeriodStats struct {
	TotalLines  int64
	TotalPRs    int64
	MergedPRs   int64
	ValidMonths int
}

func (s PeriodStats) AvgLines() float64 {
	return float64(s.TotalLines) / float64(s.ValidMonths)
}

func (s PeriodStats) AvgPRs() float64 {
	return float64(s.TotalPRs) / float64(s.ValidMonths)
}

type Report struct {
	stats    map[string]MonthStats
	config   *PeriodsConfig
	excluded types.Set[string]
	p        *message.Printer
}

func NewReport(stats map[string]MonthStats, config *PeriodsConfig) *Report {
	return &Report{
		stats:    stats,
		config:   config,
		excluded: types.NewSet(config.Exclude...),
		p:        message.NewPrinter(language.English),
	}
}

// PeriodStats returns false when none of months has data
func (r *Report) PeriodStats(months []string) (PeriodStats, bool) {
	res := PeriodStats{}
	for _, m := range months {
		s, ok := r.stats[m]
		if !ok || r.excluded.Contains(m) {
			continue
		}
		res.TotalLines += s.TotalLines
		res.TotalPRs += s.TotalPRs
		res.MergedPRs += s.MergedPRs
		res.ValidMonths++
	}
	return res, res.ValidMonths > 0
}

func percentChange(before, after float64) string {
	if before == 0 {
		return "n/a"
	}
	change := (after - before) / before * 100
	return fmt.Sprintf("%s%.1f%%", utils.Ternary(change > 0, "+", ""), change)
}

func (r *Report) Write(w io.Writer) {
	sep := strings.Repeat("=", 70)
	excludeLabel := utils.NvlString(r.config.ExcludeLabel, strings.Join(r.config.Exclude, ", "))

	_, _ = fmt.Fprintf(w, "%s\nPRODUCTIVITY ANALYSIS BY PERIOD\n%s\n\n", sep, sep)
	for _, period := range r.config.Periods {
		s, ok := r.PeriodStats(period.Months)
		if !ok {
			continue
		}
		_, _ = r.p.Fprintf(w, "%s:\n", period.Name)
		_, _ = r.p.Fprintf(w, "  Lines changed: %d (%.0f/month)\n", s.TotalLines, s.AvgLines())
		_, _ = r.p.Fprintf(w, "  PRs: %d total, %d merged (%.1f/month)\n\n", s.TotalPRs, s.MergedPRs, s.AvgPRs())
	}

	if r.config.Before.Name != "" || r.config.After.Name != "" {
		_, _ = fmt.Fprintf(w, "%s\n%s\n", sep, utils.NvlString(r.config.Comparison, "COMPARISON"))
		if excludeLabel != "" {
			_, _ = fmt.Fprintf(w, "(Excluding %s)\n", excludeLabel)
		}
		_, _ = fmt.Fprintf(w, "%s\n\n", sep)
		before, okBefore := r.PeriodStats(r.config.Before.Months)
		after, okAfter := r.PeriodStats(r.config.After.Months)
		if okBefore && okAfter {
			for _, side := range []struct {
				name  string
				stats PeriodStats
			}{{r.config.Before.Name, before}, {r.config.After.Name, after}} {
				_, _ = r.p.Fprintf(w, "%s: %d months\n", side.name, side.stats.ValidMonths)
				_, _ = r.p.Fprintf(w, "  Avg lines/month: %.0f\n", side.stats.AvgLines())
				_, _ = r.p.Fprintf(w, "  Avg PRs/month: %.1f\n\n", side.stats.AvgPRs())
			}
			_, _ = fmt.Fprintf(w, "Change:\n")
			_, _ = fmt.Fprintf(w, "  Lines/month: %s\n", percentChange(before.AvgLines(), after.AvgLines()))
			_, _ = fmt.Fprintf(w, "  PRs/month: %s\n", percentChange(before.AvgPRs(), after.AvgPRs()))
		} else {
			_, _ = fmt.Fprintf(w, "Not enough data for comparison\n")
		}
	}

	_, _ = fmt.Fprintf(w, "\n%s\n", sep)
	if excludeLabel != "" {
		_, _ = fmt.Fprintf(w, "MONTHLY BREAKDOWN (Excluding %s)\n", excludeLabel)
	} else {
		_, _ = fmt.Fprintf(w, "MONTHLY BREAKDOWN\n")
	}
	_, _ = fmt.Fprintf(w, "%s\n\n", sep)
	_, _ = fmt.Fprintf(w, "%-10s %10s %6s %8s %12s %12s\n", "Month", "Lines", "PRs", "Merged", "Additions", "Deletions")
	_, _ = fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	months := types.NewSet[string]()
	for m := range r.stats {
		if !r.excluded.Contains(m) {
			months.Put(m)
		}
	}
	for _, m := range months.ToSlice() {
		s := r.stats[m]
		_, _ = fmt.Fprintf(w, "%-10s %10s %6d %8d %12s %12s\n", m,
			r.p.Sprintf("%d", s.TotalLines), s.TotalPRs, s.MergedPRs,
			r.p.Sprintf("%d", s.Additions), r.p.Sprintf("%d", s.Deletions))
	}
}
