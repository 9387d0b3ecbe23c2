package runbook

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDeleting    Status = "deleting"
	StatusBackfilling Status = "backfilling"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// StatusOrder is the order statuses are shown in reports
var StatusOrder = []Status{StatusCompleted, StatusBackfilling, StatusRunning, StatusDeleting, StatusFailed, StatusPending}

var ErrUnknownUnit = errors.New("unknown unit")

// Counts row counts by tracked table
type Counts map[string]int64

func (c Counts) Total() int64 {
	var total int64
	for _, v := range c {
		total += v
	}
	return total
}

func (c Counts) Add(other Counts) {
	for k, v := range other {
		c[k] += v
	}
}

// UnitState is the persisted state of a single unit of work: a customer or a day.
type UnitState struct {
	Status Status `json:"status"`
	// Customer id the job is scoped to. Empty for day units of multi-customer runs.
	Customer string `json:"customer,omitempty"`
	// Date of day unit in YYYY-MM-DD format
	Date      string   `json:"date,omitempty"`
	Databases []string `json:"databases,omitempty"`
	// Split unit runs one job per day of the date range sequentially
	Split         bool     `json:"split,omitempty"`
	CompletedDays []string `json:"completed_days,omitempty"`
	// CurrentDay is the day of split unit whose job is in flight
	CurrentDay string `json:"current_day,omitempty"`
	// DeleteDone delete and mutations convergence already finished
	DeleteDone   bool       `json:"delete_done"`
	BeforeCounts Counts     `json:"before_counts"`
	AfterCounts  Counts     `json:"after_counts"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	Error        string     `json:"error,omitempty"`
	Note         string     `json:"note,omitempty"`
	JobName      string     `json:"job_name,omitempty"`
	WorkflowIDs  []string   `json:"workflow_ids,omitempty"`
	// Tracked workflow discovery for JobName finished, so WorkflowIDs is final
	Tracked bool `json:"tracked,omitempty"`
}

// Reset returns unit to pending keeping its identity and baseline counts
func (u *UnitState) Reset() {
	*u = UnitState{
		Status:       StatusPending,
		Customer:     u.Customer,
		Date:         u.Date,
		Databases:    u.Databases,
		Split:        u.Split,
		BeforeCounts: u.BeforeCounts,
	}
}

func (u *UnitState) clearJob() {
	u.JobName = ""
	u.WorkflowIDs = nil
	u.Tracked = false
	u.CurrentDay = ""
}

// Tracking is the progress document of a single run
type Tracking struct {
	RunID     string                `json:"run_id"`
	Runbook   string                `json:"runbook"`
	Cluster   string                `json:"cluster"`
	Host      string                `json:"ch_host,omitempty"`
	Customers []string              `json:"customers,omitempty"`
	DateRange [2]string             `json:"date_range"`
	CreatedAt time.Time             `json:"created_at"`
	Units     map[string]*UnitState `json:"units"`
}

// SortedIDs returns unit ids in processing order
func (t *Tracking) SortedIDs() []string {
	ids := make([]string, 0, len(t.Units))
	for id := range t.Units {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// IDsWithStatus returns sorted ids of units in one of provided statuses
func (t *Tracking) IDsWithStatus(statuses ...Status) []string {
	return utils.ArrayFilter(t.SortedIDs(), func(id string) bool {
		return slices.Contains(statuses, t.Units[id].Status)
	})
}

// Unfinished returns sorted ids of units that are not completed
func (t *Tracking) Unfinished() []string {
	return utils.ArrayFilter(t.SortedIDs(), func(id string) bool {
		return t.Units[id].Status != StatusCompleted
	})
}

func (t *Tracking) CountByStatus() map[Status]int {
	res := make(map[Status]int, len(StatusOrder))
	for _, u := range t.Units {
		res[u.Status]++
	}
	return res
}

// Reset force-sets unit to pending. Returns previous status.
func (t *Tracking) Reset(id string) (Status, error) {
	u, ok := t.Units[id]
	if !ok {
		return "", ErrUnknownUnit
	}
	old := u.Status
	u.Reset()
	return old, nil
}

// Window returns date range unit's job is scoped to
func (t *Tracking) Window(id string) Window {
	u := t.Units[id]
	if u != nil && u.Date != "" {
		next, err := utils.NextDay(u.Date)
		if err == nil {
			return Window{Start: u.Date, End: next}
		}
	}
	return Window{Start: t.DateRange[0], End: t.DateRange[1]}
}

// Spec returns the unit description passed to pipeline steps
func (t *Tracking) Spec(id string) UnitSpec {
	u := t.Units[id]
	return UnitSpec{
		ID:        id,
		Customer:  utils.NvlString(u.Customer, strings.Join(t.Customers, ",")),
		Databases: u.Databases,
		Window:    t.Window(id),
	}
}

// Window is a [Start, End) range of days in YYYY-MM-DD format
type Window struct {
	Start string
	End   string
}

func (w Window) StartTime() time.Time {
	t, _ := utils.ParseDay(w.Start)
	return t
}

func (w Window) EndTime() time.Time {
	t, _ := utils.ParseDay(w.End)
	return t
}

// Days splits window into single day windows
func (w Window) Days() ([]Window, error) {
	days, err := utils.DayRange(w.Start, w.End)
	if err != nil {
		return nil, err
	}
	return utils.ArrayMap(days, func(d string) Window {
		next, _ := utils.NextDay(d)
		return Window{Start: d, End: next}
	}), nil
}

func (w Window) String() string {
	return w.Start + " to " + w.End
}

// UnitSpec describes unit work for pipeline steps
type UnitSpec struct {
	ID        string
	Customer  string
	Databases []string
	Window    Window
}

// SplitPolicy decides which units are processed day by day
type SplitPolicy struct {
	// Units always split
	Units []string
	// RowThreshold splits units with baseline total rows >= threshold. 0 disables.
	RowThreshold int64
}

func (p SplitPolicy) Split(id string, before Counts) bool {
	if slices.Contains(p.Units, id) {
		return true
	}
	return p.RowThreshold > 0 && before.Total() >= p.RowThreshold
}

// DayUnits creates pending unit for every day of [start, end)
func DayUnits(start, end string) (map[string]*UnitState, error) {
	days, err := utils.DayRange(start, end)
	if err != nil {
		return nil, err
	}
	units := make(map[string]*UnitState, len(days))
	for _, day := range days {
		units[day] = &UnitState{Status: StatusPending, Date: day}
	}
	return units, nil
}
