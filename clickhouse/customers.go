package clickhouse

import (
	"context"
	"slices"
	"strings"

	"github.com/jitsucom/backfill-runbooks/runbook"
)

var (
	usecaseTokens = []string{"voice", "chat", "messaging", "email", "sbx", "sandbox"}
	sandboxTokens = []string{"sandbox", "sbx"}
)

// ExtractCustomerID maps database name <customer>_<usecase>[_<env>] to customer id.
// Sandbox databases map to <customer>-sandbox.
//
//	hilton_chat -> hilton
//	mutualofomaha_medsupp_voice -> mutualofomaha
//	mutualofomaha_sandbox_voice_sbx -> mutualofomaha-sandbox
func ExtractCustomerID(database string) string {
	parts := strings.Split(database, "_")
	sandbox := false
	var customerParts []string
	for _, part := range parts {
		if slices.Contains(sandboxTokens, part) {
			sandbox = true
		}
		if slices.Contains(usecaseTokens, part) {
			continue
		}
		customerParts = append(customerParts, part)
	}
	customerID := parts[0]
	if len(customerParts) > 0 {
		customerID = customerParts[0]
	}
	if sandbox {
		customerID += "-sandbox"
	}
	return customerID
}

// Customer is discovered customer with databases that have rows in tracked tables
type Customer struct {
	Databases []string
	Counts    runbook.Counts
}

// TrackedTables tables that share time column in every customer database
type TrackedTables struct {
	// Primary table presence marks customer database
	Primary    string
	Tables     []string
	TimeColumn string
}

func (tt TrackedTables) scope(database, table string) Scope {
	return Scope{Database: database, Table: table, TimeColumn: tt.TimeColumn}
}

// CountDatabase counts rows of every tracked table. Count failures (e.g. missing table) count as zero.
func (w *Warehouse) CountDatabase(ctx context.Context, tables TrackedTables, database string, window runbook.Window) runbook.Counts {
	counts := runbook.Counts{}
	for _, table := range tables.Tables {
		n, err := w.Count(ctx, tables.scope(database, table), window)
		if err != nil {
			w.Debugf("count %s.%s: %v", database, table, err)
			n = 0
		}
		counts[table] = n
	}
	return counts
}

// DiscoverCustomers finds databases with rows in window grouped by customer id
func (w *Warehouse) DiscoverCustomers(ctx context.Context, tables TrackedTables, window runbook.Window) (map[string]*Customer, error) {
	w.Infof("Discovering databases with %s data...", tables.Primary)
	databases, err := w.Databases(ctx, tables.Primary)
	if err != nil {
		return nil, err
	}
	w.Infof("Found %d databases with %s tables", len(databases), tables.Primary)
	customers := map[string]*Customer{}
	for _, db := range databases {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		counts := w.CountDatabase(ctx, tables, db, window)
		if counts.Total() == 0 {
			continue
		}
		customerID := ExtractCustomerID(db)
		c, ok := customers[customerID]
		if !ok {
			c = &Customer{Counts: runbook.Counts{}}
			customers[customerID] = c
		}
		c.Databases = append(c.Databases, db)
		c.Counts.Add(counts)
		w.Infof("  %s: %v (customer=%s)", db, counts, customerID)
	}
	w.Infof("%d customers with data", len(customers))
	return customers, nil
}
