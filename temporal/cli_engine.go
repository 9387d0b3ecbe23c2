package temporal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const cliListTimeout = 30 * time.Second

// CommandRunner runs a binary and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the binary found in PATH
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", name, args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// CLIEngine uses `temporal workflow describe|list --output json`
type CLIEngine struct {
	Binary    string
	Namespace string
	Address   string
	run       CommandRunner
}

func NewCLIEngine(address, namespace string, run CommandRunner) *CLIEngine {
	if run == nil {
		run = ExecRunner
	}
	return &CLIEngine{Binary: "temporal", Namespace: namespace, Address: address, run: run}
}

type cliDescribe struct {
	WorkflowExecutionInfo struct {
		Status string `json:"status"`
	} `json:"workflowExecutionInfo"`
}

type cliExecution struct {
	Execution struct {
		WorkflowID string `json:"workflowId"`
	} `json:"execution"`
	StartTime string `json:"startTime"`
}

func (e *CLIEngine) Describe(ctx context.Context, workflowID string) (Status, error) {
	out, err := e.run(ctx, e.Binary, "workflow", "describe",
		"--namespace", e.Namespace, "--address", e.Address,
		"--workflow-id", workflowID, "--output", "json")
	if err != nil {
		return StatusUnknown, errorj.ExternalCallError.Wrap(err, "failed to describe workflow %s", workflowID)
	}
	return ParseDescribe(out)
}

func (e *CLIEngine) List(ctx context.Context, query string) ([]Execution, error) {
	ctx, cancel := context.WithTimeout(ctx, cliListTimeout)
	defer cancel()
	out, err := e.run(ctx, e.Binary, "workflow", "list",
		"--namespace", e.Namespace, "--address", e.Address,
		"--query", query, "--output", "json")
	if err != nil {
		return nil, errorj.ExternalCallError.Wrap(err, "failed to list workflows")
	}
	return ParseList(out)
}

func (e *CLIEngine) Close() error {
	return nil
}

// ParseDescribe reads workflowExecutionInfo.status of describe output
func ParseDescribe(data []byte) (Status, error) {
	var d cliDescribe
	if err := json.Unmarshal(data, &d); err != nil {
		return StatusUnknown, errorj.ParseError.Wrap(err, "failed to parse describe output")
	}
	return ParseStatus(d.WorkflowExecutionInfo.Status), nil
}

// ParseList reads list output. Entries without workflow id or start time are skipped.
func ParseList(data []byte) ([]Execution, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var list []cliExecution
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, errorj.ParseError.Wrap(err, "failed to parse list output")
	}
	res := make([]Execution, 0, len(list))
	for _, item := range list {
		if item.Execution.WorkflowID == "" || item.StartTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339Nano, item.StartTime)
		if err != nil {
			continue
		}
		res = append(res, Execution{WorkflowID: item.Execution.WorkflowID, StartTime: start})
	}
	return res, nil
}
