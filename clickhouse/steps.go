package clickhouse

import (
	"context"

	"github.com/jitsucom/backfill-runbooks/runbook"
)

// DatabaseSteps deletes and counts tracked tables in every database of a customer unit
type DatabaseSteps struct {
	Warehouse *Warehouse
	Tables    TrackedTables
}

func (s *DatabaseSteps) Delete(ctx context.Context, spec runbook.UnitSpec) error {
	for _, db := range spec.Databases {
		for _, table := range s.Tables.Tables {
			s.Warehouse.Infof("[%s] Deleting from %s.%s...", spec.ID, db, table)
			if err := s.Warehouse.Delete(ctx, s.Tables.scope(db, table), spec.Window); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *DatabaseSteps) WaitConverged(ctx context.Context, spec runbook.UnitSpec) error {
	if len(spec.Databases) == 0 {
		return nil
	}
	return s.Warehouse.WaitForMutations(ctx, MutationFilter{Databases: spec.Databases})
}

func (s *DatabaseSteps) Count(ctx context.Context, spec runbook.UnitSpec) (runbook.Counts, error) {
	total := runbook.Counts{}
	for _, db := range spec.Databases {
		total.Add(s.Warehouse.CountDatabase(ctx, s.Tables, db, spec.Window))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return total, nil
}

// TableSteps deletes unit window from a single shared table. Rows are counted in CountTable first:
// nothing to delete skips the mutation.
type TableSteps struct {
	Warehouse *Warehouse
	Scope     Scope
	// CountTable is the table rows are counted in. Defaults to Scope.Table.
	CountTable string
}

func (s *TableSteps) scope(spec runbook.UnitSpec) Scope {
	scope := s.Scope
	scope.Customer = spec.Customer
	return scope
}

func (s *TableSteps) countScope(spec runbook.UnitSpec) Scope {
	scope := s.scope(spec)
	if s.CountTable != "" {
		scope.Table = s.CountTable
	}
	return scope
}

func (s *TableSteps) Delete(ctx context.Context, spec runbook.UnitSpec) error {
	count, err := s.Warehouse.Count(ctx, s.countScope(spec), spec.Window)
	if err != nil {
		return err
	}
	s.Warehouse.Infof("[%s] Rows to delete: %d", spec.ID, count)
	if count == 0 {
		return nil
	}
	if err = s.Warehouse.Delete(ctx, s.scope(spec), spec.Window); err != nil {
		return err
	}
	s.Warehouse.Infof("[%s] DELETE mutation submitted", spec.ID)
	return nil
}

func (s *TableSteps) WaitConverged(ctx context.Context, spec runbook.UnitSpec) error {
	return s.Warehouse.WaitForMutations(ctx, MutationFilter{Table: s.Scope.Table})
}

func (s *TableSteps) Count(ctx context.Context, spec runbook.UnitSpec) (runbook.Counts, error) {
	scope := s.countScope(spec)
	n, err := s.Warehouse.Count(ctx, scope, spec.Window)
	if err != nil {
		return nil, err
	}
	return runbook.Counts{scope.Table: n}, nil
}
