package testcontainers

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/docker/go-connections/nat"
	"github.com/jitsucom/backfill-runbooks/jitsubase/logging"
	"github.com/testcontainers/testcontainers-go"
	tcWait "github.com/testcontainers/testcontainers-go/wait"
)

const envClickhousePortVariable = "CH_TEST_PORT"

// ClickHouseContainer is a single node ClickHouse testcontainer
type ClickHouseContainer struct {
	Container testcontainers.Container
	Context   context.Context
	Host      string
	Port      int
}

// NewClickhouseContainer creates new ClickHouse test container if CH_TEST_PORT is not defined. Otherwise uses server at defined port.
func NewClickhouseContainer(ctx context.Context) (*ClickHouseContainer, error) {
	if os.Getenv(envClickhousePortVariable) != "" {
		port, err := strconv.Atoi(os.Getenv(envClickhousePortVariable))
		if err != nil {
			return nil, err
		}
		return &ClickHouseContainer{Context: ctx, Host: "localhost", Port: port}, nil
	}
	dbURL := func(host string, port nat.Port) string {
		return fmt.Sprintf("clickhouse://default:@%s:%s/default", host, port.Port())
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.6-alpine",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   tcWait.ForSQL("9000/tcp", "clickhouse", dbURL).WithStartupTimeout(1 * time.Minute),
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
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	logging.Infof("testcontainers clickhouse started at %s:%d", host, port.Int())
	return &ClickHouseContainer{
		Container: container,
		Context:   ctx,
		Host:      host,
		Port:      port.Int(),
	}, nil
}

// Close terminates underlying docker container
func (ch *ClickHouseContainer) Close() error {
	if ch.Container != nil {
		if err := ch.Container.Terminate(ch.Context); err != nil {
			logging.Errorf("Failed to stop ch container: %v", err)
		}
	}
	return nil
}
