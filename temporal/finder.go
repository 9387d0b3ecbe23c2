package temporal

import (
	"context"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

const (
	DefaultCleanupMaxAge = 3 * time.Minute
	DefaultRerunMaxAge   = 2 * time.Minute
)

// PrefixFunc returns workflow id prefixes of workflows spawned for spec
type PrefixFunc func(spec runbook.UnitSpec) []string

// CustomerPrefixes reindex workflow prefixes for every customer of comma separated spec.Customer
func CustomerPrefixes(clusterTag string) PrefixFunc {
	return func(spec runbook.UnitSpec) []string {
		return utils.ArrayMap(utils.SplitNonEmpty(spec.Customer), func(c string) string {
			return ReindexPrefix(c, clusterTag)
		})
	}
}

// Finder looks up running workflows started recently by a just created job
type Finder struct {
	appbase.Service
	engine   Engine
	tunnel   runbook.Tunnel
	prefixes PrefixFunc
	MaxAge   time.Duration
	now      func() time.Time
}

// NewFinder tunnel may be nil when engine is reachable directly
func NewFinder(engine Engine, tunnel runbook.Tunnel, prefixes PrefixFunc, maxAge time.Duration) *Finder {
	return &Finder{
		Service:  appbase.NewServiceBase("workflow-finder"),
		engine:   engine,
		tunnel:   tunnel,
		prefixes: prefixes,
		MaxAge:   maxAge,
		now:      time.Now,
	}
}

func (f *Finder) FindWorkflows(ctx context.Context, spec runbook.UnitSpec) ([]string, error) {
	prefixes := f.prefixes(spec)
	if len(prefixes) == 0 {
		return nil, nil
	}
	if f.tunnel != nil {
		if err := f.tunnel.EnsureAlive(ctx); err != nil {
			return nil, err
		}
	}
	executions, err := f.engine.List(ctx, RunningQuery(prefixes...))
	if err != nil {
		return nil, err
	}
	cutoff := f.now().Add(-f.MaxAge)
	var ids []string
	for _, e := range executions {
		if e.StartTime.After(cutoff) {
			ids = append(ids, e.WorkflowID)
		} else {
			f.Debugf("skipping %s started at %s", e.WorkflowID, e.StartTime)
		}
	}
	return ids, nil
}
