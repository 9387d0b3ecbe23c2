package clickhouse

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
)

// Querier runs single SQL statements against ClickHouse
type Querier interface {
	// QueryColumn returns the first column of every result row rendered as text
	QueryColumn(ctx context.Context, query string) ([]string, error)
	Exec(ctx context.Context, query string) error
	Close() error
}

// NativeQuerier talks native protocol through clickhouse-go database/sql driver
type NativeQuerier struct {
	dataSource   *sql.DB
	queryTimeout time.Duration
}

func NewNativeQuerier(ctx context.Context, config *Config) (*NativeQuerier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	dataSource, err := sql.Open("clickhouse", config.ConnectionString())
	if err != nil {
		return nil, errorj.ExternalCallError.Wrap(err, "failed to open clickhouse connection")
	}
	dataSource.SetMaxIdleConns(2)
	dataSource.SetConnMaxLifetime(time.Minute * 10)
	dataSource.SetConnMaxIdleTime(time.Minute * 3)
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err = dataSource.PingContext(pingCtx); err != nil {
		_ = dataSource.Close()
		return nil, errorj.ExternalCallError.Wrap(err, "failed to connect to clickhouse %s", strings.Join(config.Hosts, ","))
	}
	return &NativeQuerier{dataSource: dataSource, queryTimeout: config.QueryTimeout}, nil
}

func (q *NativeQuerier) withSettings(ctx context.Context) context.Context {
	if q.queryTimeout <= 0 {
		return ctx
	}
	return clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"max_execution_time": int(q.queryTimeout.Seconds()),
	}))
}

func (q *NativeQuerier) QueryColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := q.dataSource.QueryContext(q.withSettings(ctx), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var value string
		if err = rows.Scan(&value); err != nil {
			return nil, err
		}
		res = append(res, value)
	}
	return res, rows.Err()
}

func (q *NativeQuerier) Exec(ctx context.Context, query string) error {
	_, err := q.dataSource.ExecContext(q.withSettings(ctx), query)
	return err
}

func (q *NativeQuerier) Close() error {
	return q.dataSource.Close()
}

// CommandRunner runs a command next to the ClickHouse server, e.g. inside its pod
type CommandRunner interface {
	Run(ctx context.Context, command []string) (string, error)
}

// ClientQuerier runs statements with clickhouse-client through CommandRunner.
// Used when the server is reachable only through the cluster API.
type ClientQuerier struct {
	runner CommandRunner
}

func NewClientQuerier(runner CommandRunner) *ClientQuerier {
	return &ClientQuerier{runner: runner}
}

func (q *ClientQuerier) QueryColumn(ctx context.Context, query string) ([]string, error) {
	out, err := q.runner.Run(ctx, []string{"clickhouse-client", "--query=" + query})
	if err != nil {
		return nil, err
	}
	var res []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		res = append(res, strings.SplitN(line, "\t", 2)[0])
	}
	return res, nil
}

func (q *ClientQuerier) Exec(ctx context.Context, query string) error {
	_, err := q.runner.Run(ctx, []string{"clickhouse-client", "--query=" + query})
	return err
}

func (q *ClientQuerier) Close() error {
	return nil
}
