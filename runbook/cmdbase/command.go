package cmdbase

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jitsucom/backfill-runbooks/jitsubase/appbase"
	"github.com/jitsucom/backfill-runbooks/runbook"
)

// Discover returns initial units of a new run
type Discover func(ctx context.Context) (map[string]*runbook.UnitState, error)

// Command dispatches run, --status and --reset modes of a runbook against its progress store
type Command struct {
	appbase.Service
	Store  runbook.Store
	Report runbook.ReportOptions
	// ResolveUnit maps --reset argument to unit id. Nil means argument is the id.
	ResolveUnit func(t *runbook.Tracking, arg string) (string, error)
	Out         io.Writer
}

func NewCommand(name string, store runbook.Store, report runbook.ReportOptions) *Command {
	return &Command{
		Service: appbase.NewServiceBase(name),
		Store:   store,
		Report:  report,
		Out:     os.Stdout,
	}
}

// Execute runs the mode selected by cfg. Status is printed after a run that was not interrupted.
func (c *Command) Execute(ctx context.Context, cfg *TrackingConfig, run func(ctx context.Context) error) error {
	switch {
	case cfg.Status:
		return c.PrintStatus(ctx)
	case cfg.Reset != "":
		return c.Reset(ctx, cfg.Reset)
	}
	if err := run(ctx); err != nil {
		return err
	}
	return c.PrintStatus(ctx)
}

func (c *Command) PrintStatus(ctx context.Context) error {
	t, err := c.Store.Load(ctx)
	if runbook.IsNotFound(err) {
		_, _ = fmt.Fprintf(c.Out, "No tracking found at %s. Run without --status to start.\n", c.Store.Location())
		return nil
	}
	if err != nil {
		return err
	}
	runbook.WriteStatus(c.Out, t, c.Report)
	return nil
}

func (c *Command) Reset(ctx context.Context, arg string) error {
	t, err := c.Store.Load(ctx)
	if runbook.IsNotFound(err) {
		return fmt.Errorf("no tracking found at %s", c.Store.Location())
	}
	if err != nil {
		return err
	}
	id := arg
	if c.ResolveUnit != nil {
		if id, err = c.ResolveUnit(t, arg); err != nil {
			return err
		}
	}
	old, err := t.Reset(id)
	if err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}
	if err = c.Store.Save(ctx, t); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.Out, "Reset %s: %s -> pending\n", id, old)
	return nil
}

// LoadOrInit resumes existing progress document or discovers units and creates a new one
func (c *Command) LoadOrInit(ctx context.Context, header runbook.Tracking, discover Discover) (*runbook.Tracking, error) {
	t, err := c.Store.Load(ctx)
	if err == nil {
		c.Infof("Resuming run %s from %s", t.RunID, c.Store.Location())
		return t, nil
	}
	if !runbook.IsNotFound(err) {
		return nil, err
	}
	units, err := discover(ctx)
	if err != nil {
		return nil, err
	}
	t, err = runbook.Init(ctx, c.Store, header, units)
	if err != nil {
		return nil, err
	}
	c.Infof("Initialized tracking with %d units at %s", len(units), c.Store.Location())
	return t, nil
}
