package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

// MonthStats code contribution totals of a month
type MonthStats struct {
	Month      string
	Additions  int64
	Deletions  int64
	TotalLines int64
	MergedPRs  int64
	TotalPRs   int64
}

// ParseStats reads TSV lines: month additions deletions total_lines merged_prs total_prs.
// Blank lines are skipped. Later lines win for duplicate months.
func ParseStats(r io.Reader) (map[string]MonthStats, error) {
	res := map[string]MonthStats{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 6 {
			return nil, fmt.Errorf("line %d: expected 6 tab separated columns, got %d", lineNum, len(parts))
		}
		if _, err := utils.ParseMonth(parts[0]); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		values := make([]int64, 5)
		for i := range values {
			v, err := strconv.ParseInt(strings.TrimSpace(parts[i+1]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", lineNum, i+2, err)
			}
			values[i] = v
		}
		res[parts[0]] = MonthStats{
			Month:      parts[0],
			Additions:  values[0],
			Deletions:  values[1],
			TotalLines: values[2],
			MergedPRs:  values[3],
			TotalPRs:   values[4],
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
