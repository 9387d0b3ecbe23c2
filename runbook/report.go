package runbook

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

const separator = "============================================================"

// NameFormat renders sorted unit ids of a single status
type NameFormat func(ids []string) string

// TruncatedNames shows first n ids followed by the number of hidden ones
func TruncatedNames(n int) NameFormat {
	return func(ids []string) string {
		if len(ids) <= n {
			return strings.Join(ids, ", ")
		}
		return fmt.Sprintf("%s, ... (+%d more)", strings.Join(ids[:n], ", "), len(ids)-n)
	}
}

// FirstLast shows up to 5 ids, otherwise the first and the last one
func FirstLast(ids []string) string {
	if len(ids) <= 5 {
		return strings.Join(ids, ", ")
	}
	return ids[0] + " ... " + ids[len(ids)-1]
}

// CompactDays renders YYYY-MM-DD ids as day-of-month ranges grouped by month: "Jan 1-3, 5, 7-9; Feb 1"
func CompactDays(ids []string) string {
	var groups []string
	var month string
	var nums []int
	flush := func() {
		if len(nums) > 0 {
			groups = append(groups, month+" "+CompactRanges(nums))
		}
	}
	for _, id := range ids {
		d, err := utils.ParseDay(id)
		if err != nil {
			flush()
			groups = append(groups, id)
			month, nums = "", nil
			continue
		}
		m := d.Format("Jan")
		if m != month {
			flush()
			month, nums = m, nil
		}
		nums = append(nums, d.Day())
	}
	flush()
	return strings.Join(groups, "; ")
}

// CompactRanges turns [1,2,3,5,7,8,9] into "1-3, 5, 7-9"
func CompactRanges(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	var ranges []string
	start, end := nums[0], nums[0]
	appendRange := func() {
		if start != end {
			ranges = append(ranges, fmt.Sprintf("%d-%d", start, end))
		} else {
			ranges = append(ranges, strconv.Itoa(start))
		}
	}
	for _, n := range nums[1:] {
		if n == end+1 {
			end = n
			continue
		}
		appendRange()
		start, end = n, n
	}
	appendRange()
	return strings.Join(ranges, ", ")
}

type ReportOptions struct {
	Title      string
	NameFormat NameFormat
	// Totals shows before/after row totals of completed units
	Totals bool
	// Failures lists errors of failed units
	Failures bool
}

// WriteStatus writes human-readable progress summary grouped by status
func WriteStatus(w io.Writer, t *Tracking, opts ReportOptions) {
	format := opts.NameFormat
	if format == nil {
		format = TruncatedNames(5)
	}
	p := func(f string, args ...any) {
		_, _ = fmt.Fprintf(w, f+"\n", args...)
	}
	p(separator)
	p("%s - %s", opts.Title, t.Cluster)
	p(separator)
	if t.Host != "" {
		p("ClickHouse: %s", t.Host)
	}
	if len(t.Customers) > 0 {
		p("Customers:  %s", strings.Join(t.Customers, ","))
	}
	p("Date range: %s to %s", t.DateRange[0], t.DateRange[1])
	p("Created:    %s", t.CreatedAt.Format(time.RFC3339))
	p("Run ID:     %s", t.RunID)
	p("Units:      %d", len(t.Units))
	p("------------------------------------------------------------")
	counts := t.CountByStatus()
	total := 0
	for _, status := range StatusOrder {
		count := counts[status]
		total += count
		if count == 0 {
			continue
		}
		p("  %-14s: %3d  [%s]", strings.ToUpper(string(status)), count, format(t.IDsWithStatus(status)))
	}
	p("  %-14s: %3d", "TOTAL", total)
	p("------------------------------------------------------------")

	if opts.Totals {
		before, after := Counts{}, Counts{}
		for _, id := range t.IDsWithStatus(StatusCompleted) {
			u := t.Units[id]
			if len(u.AfterCounts) == 0 {
				continue
			}
			before.Add(u.BeforeCounts)
			after.Add(u.AfterCounts)
		}
		if before.Total() > 0 {
			p("")
			p("  Completed totals:")
			keys := make([]string, 0, len(before))
			for k := range before {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				p("    %-10s %d -> %d (-%d)", k+":", before[k], after[k], before[k]-after[k])
			}
		}
	}
	if opts.Failures {
		failed := t.IDsWithStatus(StatusFailed)
		if len(failed) > 0 {
			p("")
			p("  Failures:")
			for _, id := range failed {
				p("    %s: %s", id, utils.NvlString(t.Units[id].Error, "unknown"))
			}
		}
	}
	p(separator)
}
