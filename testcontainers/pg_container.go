package testcontainers

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/testcontainers/testcontainers-go"
	tcWait "github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "test"
	pgPassword = "test"
	pgDatabase = "test"

	envPostgresPortVariable = "PG_TEST_PORT"
)

// PostgresContainer is a Postgres testcontainer
type PostgresContainer struct {
	Container testcontainers.Container
	Context   context.Context
	Host      string
	Port      int
}

// NewPostgresContainer creates new Postgres test container if PG_TEST_PORT is not defined. Otherwise uses db at defined port.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	if os.Getenv(envPostgresPortVariable) != "" {
		port, err := strconv.Atoi(os.Getenv(envPostgresPortVariable))
		if err != nil {
			return nil, err
		}
		return &PostgresContainer{Context: ctx, Host: "localhost", Port: port}, nil
	}
	dbURL := func(host string, port nat.Port) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, port.Port(), pgDatabase)
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			WaitingFor: tcWait.ForSQL("5432/tcp", "pgx", dbURL).WithStartupTimeout(time.Second * 60),
		},
		Started: true,
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	logging.Infof("testcontainers postgres started at %s:%d", host, port.Int())
	return &PostgresContainer{
		Container: container,
		Context:   ctx,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// URL returns pgx connection url with optional search_path
func (pgc *PostgresContainer) URL(schema string) string {
	url := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", pgUser, pgPassword, pgc.Host, pgc.Port, pgDatabase)
	if schema != "" {
		url += "&search_path=" + schema
	}
	return url
}

// Close terminates underlying postgres docker container
func (pgc *PostgresContainer) Close() error {
	if pgc.Container != nil {
		if err := pgc.Container.Terminate(pgc.Context); err != nil {
			logging.Errorf("Failed to stop postgres container: %v", err)
		}
	}
	return nil
}
