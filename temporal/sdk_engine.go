package temporal

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
)

// SDKEngine talks to temporal frontend with the Go SDK client
type SDKEngine struct {
	client    client.Client
	namespace string
}

// NewSDKEngine connects to hostPort. Connection is lazy so tunnel may be started later.
func NewSDKEngine(hostPort, namespace string) (*SDKEngine, error) {
	c, err := client.NewLazyClient(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
		Logger:    sdkLogger{entry: logrus.WithField("component", "temporal-sdk")},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client for %s: %w", hostPort, err)
	}
	return &SDKEngine{client: c, namespace: namespace}, nil
}

func (e *SDKEngine) Describe(ctx context.Context, workflowID string) (Status, error) {
	resp, err := e.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return StatusUnknown, err
	}
	return statusFromEnum(resp.GetWorkflowExecutionInfo().GetStatus()), nil
}

func (e *SDKEngine) List(ctx context.Context, query string) ([]Execution, error) {
	var res []Execution
	var token []byte
	for {
		resp, err := e.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
			Namespace:     e.namespace,
			Query:         query,
			NextPageToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, info := range resp.GetExecutions() {
			res = append(res, Execution{
				WorkflowID: info.GetExecution().GetWorkflowId(),
				StartTime:  info.GetStartTime().AsTime(),
			})
		}
		token = resp.GetNextPageToken()
		if len(token) == 0 {
			return res, nil
		}
	}
}

func (e *SDKEngine) Close() error {
	e.client.Close()
	return nil
}

func statusFromEnum(s enumspb.WorkflowExecutionStatus) Status {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return StatusRunning
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return StatusCompleted
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return StatusFailed
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return StatusCanceled
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return StatusTerminated
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return StatusContinuedAsNew
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return StatusTimedOut
	}
	return StatusUnknown
}

// sdkLogger routes SDK logs to logrus. SDK info messages are noisy so they are logged at debug level.
type sdkLogger struct {
	entry *logrus.Entry
}

func (l sdkLogger) with(keyvals []any) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		fields[fmt.Sprint(keyvals[i])] = keyvals[i+1]
	}
	return l.entry.WithFields(fields)
}

func (l sdkLogger) Debug(msg string, keyvals ...any) { l.with(keyvals).Debug(msg) }
func (l sdkLogger) Info(msg string, keyvals ...any)  { l.with(keyvals).Debug(msg) }
func (l sdkLogger) Warn(msg string, keyvals ...any)  { l.with(keyvals).Warn(msg) }
func (l sdkLogger) Error(msg string, keyvals ...any) { l.with(keyvals).Error(msg) }
