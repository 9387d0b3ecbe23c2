package pg

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaRegex = regexp.MustCompile(`(?:search_path|schema)=([^$&]+)`)

func extractSchema(url string) string {
	parts := schemaRegex.FindStringSubmatch(url)
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}

// NewPGPool creates pool and checks connectivity. `schema` or `search_path` url parameter sets search_path for each connection.
func NewPGPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pgCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres url: %v", err)
	}
	schema := extractSchema(url)
	if schema != "" {
		pgCfg.ConnConfig.RuntimeParams["search_path"] = schema
		pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SELECT set_config('search_path', $1, false)", schema)
			return err
		}
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create postgres connection pool: %v", err)
	}
	if err = dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("unable to connect to postgres: %v", err)
	}
	return dbpool, nil
}
