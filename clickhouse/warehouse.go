package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

const (
	DefaultCluster               = "conversations"
	DefaultMutationPollInterval  = 10 * time.Second
	DefaultMutationTimeout       = 600 * time.Second
	dateTimeSuffix               = " 00:00:00"
	deleteSettings               = "SETTINGS replication_wait_for_inactive_replica_timeout = 0"
	pendingMutationsQueryPattern = "SELECT count() FROM system.mutations WHERE %s AND is_done = 0"
)

// SystemDatabases are never considered customer databases
var SystemDatabases = []string{
	"system", "default", "INFORMATION_SCHEMA", "information_schema",
	"cresta_system", "_temporary_and_external_tables",
}

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

// Scope selects rows of a single table within a date window
type Scope struct {
	Database   string
	Table      string
	TimeColumn string
	// DateTime renders window bounds as 'YYYY-MM-DD 00:00:00'
	DateTime bool
	// CustomerColumn and Customer add customer filter. Empty or "all" customer disables it.
	CustomerColumn string
	Customer       string
}

func (s Scope) table() string {
	return s.Database + "." + s.Table
}

func (s Scope) where(w runbook.Window) string {
	start, end := w.Start, w.End
	if s.DateTime {
		start, end = start+dateTimeSuffix, end+dateTimeSuffix
	}
	cond := fmt.Sprintf("%s >= '%s' AND %s < '%s'", s.TimeColumn, start, s.TimeColumn, end)
	if s.CustomerColumn != "" && s.Customer != "" && s.Customer != "all" {
		cond = fmt.Sprintf("%s = '%s' AND %s", s.CustomerColumn, quote(s.Customer), cond)
	}
	return cond
}

func (s Scope) validate() error {
	for _, ident := range []string{s.Database, s.Table, s.TimeColumn} {
		if !identifierRegex.MatchString(ident) {
			return errorj.ParseError.New("invalid identifier: %q", ident)
		}
	}
	if s.CustomerColumn != "" && !identifierRegex.MatchString(s.CustomerColumn) {
		return errorj.ParseError.New("invalid identifier: %q", s.CustomerColumn)
	}
	return nil
}

// MutationFilter selects pending mutations either by databases or by table name
type MutationFilter struct {
	Databases []string
	Table     string
}

func (f MutationFilter) where() string {
	if len(f.Databases) > 0 {
		return fmt.Sprintf("database IN (%s)", quotedList(f.Databases))
	}
	return fmt.Sprintf("table = '%s'", quote(f.Table))
}

// Warehouse issues discovery, count, delete and mutation queries
type Warehouse struct {
	appbase.Service
	querier Querier
	// cluster is used in ON CLUSTER clause of deletes. Empty cluster deletes on connected node only.
	cluster              string
	MutationPollInterval time.Duration
	MutationTimeout      time.Duration
}

func NewWarehouse(querier Querier, cluster string) *Warehouse {
	return &Warehouse{
		Service:              appbase.NewServiceBase("clickhouse"),
		querier:              querier,
		cluster:              cluster,
		MutationPollInterval: DefaultMutationPollInterval,
		MutationTimeout:      DefaultMutationTimeout,
	}
}

// Databases returns sorted non-system databases that have table with provided name
func (w *Warehouse) Databases(ctx context.Context, table string) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT database FROM system.tables WHERE name = '%s' AND database NOT IN (%s) ORDER BY database",
		quote(table), quotedList(SystemDatabases))
	res, err := w.querier.QueryColumn(ctx, query)
	if err != nil {
		return nil, errorj.DiscoveryError.Wrap(err, "failed to list databases with %s table", table).
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Step: "discovery", Statement: query})
	}
	return utils.ArrayFilter(utils.ArrayMap(res, strings.TrimSpace), func(s string) bool { return s != "" }), nil
}

// Count returns number of rows in scope for window
func (w *Warehouse) Count(ctx context.Context, scope Scope, window runbook.Window) (int64, error) {
	if err := scope.validate(); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT count() FROM %s WHERE %s", scope.table(), scope.where(window))
	res, err := w.querier.QueryColumn(ctx, query)
	if err != nil {
		return 0, errorj.ExternalCallError.Wrap(err, "count of %s failed", scope.table()).
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Step: "count", Target: scope.table(), Statement: query})
	}
	return parseCount(res)
}

// Delete issues lightweight ALTER TABLE ... DELETE mutation. Mutation is applied asynchronously, see WaitForMutations.
func (w *Warehouse) Delete(ctx context.Context, scope Scope, window runbook.Window) error {
	if err := scope.validate(); err != nil {
		return err
	}
	onCluster := ""
	if w.cluster != "" {
		onCluster = fmt.Sprintf(" ON CLUSTER '%s'", quote(w.cluster))
	}
	query := fmt.Sprintf("ALTER TABLE %s%s DELETE WHERE %s %s", scope.table(), onCluster, scope.where(window), deleteSettings)
	w.Debugf("%s", query)
	if err := w.querier.Exec(ctx, query); err != nil {
		return errorj.ExternalCallError.Wrap(err, "delete from %s failed", scope.table()).
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Step: "delete", Target: scope.table(), Statement: query})
	}
	return nil
}

// PendingMutations returns number of not finished mutations matching filter
func (w *Warehouse) PendingMutations(ctx context.Context, filter MutationFilter) (int64, error) {
	query := fmt.Sprintf(pendingMutationsQueryPattern, filter.where())
	res, err := w.querier.QueryColumn(ctx, query)
	if err != nil {
		return 0, errorj.ExternalCallError.Wrap(err, "failed to query system.mutations").
			WithProperty(errorj.UnitInfo, &errorj.UnitPayload{Step: "mutations", Statement: query})
	}
	return parseCount(res)
}

// WaitForMutations polls system.mutations until no pending mutations match filter.
// Returns errorj.PollTimeoutError after MutationTimeout.
func (w *Warehouse) WaitForMutations(ctx context.Context, filter MutationFilter) error {
	return runbook.Poll(ctx, "mutations", w.MutationPollInterval, w.MutationTimeout, func(ctx context.Context, elapsed time.Duration) (bool, error) {
		pending, err := w.PendingMutations(ctx, filter)
		if err != nil {
			return false, err
		}
		if pending == 0 {
			w.Infof("All mutations completed.")
			return true, nil
		}
		w.Infof("[%s] %d mutation(s) still running...", elapsed, pending)
		return false, nil
	})
}

func (w *Warehouse) Close() error {
	return w.querier.Close()
}

func parseCount(res []string) (int64, error) {
	if len(res) == 0 || strings.TrimSpace(res[0]) == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(res[0]), 10, 64)
	if err != nil {
		return 0, errorj.ParseError.Wrap(err, "unexpected count value: %q", res[0])
	}
	return n, nil
}

func quote(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

func quotedList(values []string) string {
	return strings.Join(utils.ArrayMap(values, func(v string) string { return "'" + quote(v) + "'" }), ", ")
}
