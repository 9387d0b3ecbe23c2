package errorj

import (
	"fmt"
	"strings"

	"github.com/joomcode/errorx"
)

var (
	runbookNamespace = errorx.NewNamespace("runbook")

	// ExternalCallError is a failure of the data store, the cluster API or the workflow engine
	ExternalCallError = runbookNamespace.NewType("external_call")
	// PollTimeoutError is returned by polling loops that exceeded their ceiling
	PollTimeoutError = runbookNamespace.NewType("poll_timeout", errorx.Timeout())
	ParseError       = runbookNamespace.NewType("parse")
	DiscoveryError   = runbookNamespace.NewType("discovery")
	// StoreError means progress could not be checkpointed. It is fatal for a run.
	StoreError = runbookNamespace.NewType("store")

	UnitInfo = errorx.RegisterPrintableProperty("unit_info")
)

// UnitPayload is attached to errors as UnitInfo property
type UnitPayload struct {
	Unit      string
	Step      string
	Target    string
	Statement string
}

func (p *UnitPayload) String() string {
	var parts []string
	if p.Unit != "" {
		parts = append(parts, "unit: "+p.Unit)
	}
	if p.Step != "" {
		parts = append(parts, "step: "+p.Step)
	}
	if p.Target != "" {
		parts = append(parts, "target: "+p.Target)
	}
	if p.Statement != "" {
		parts = append(parts, "statement: "+p.Statement)
	}
	return strings.Join(parts, ", ")
}

// Decorate returns decorated error if it is errorx error, otherwise wraps it with fmt
func Decorate(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errorx.Error); ok {
		return errorx.Decorate(err, message, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(message, args...), err)
}

// IsTimeout reports whether err carries timeout trait
func IsTimeout(err error) bool {
	return errorx.HasTrait(err, errorx.Timeout())
}

func IsStoreError(err error) bool {
	return errorx.IsOfType(err, StoreError)
}

// Message returns chain of error messages without errorx type names and properties.
// Used for human-editable progress documents.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if ex := errorx.Cast(err); ex != nil {
		msg := ex.Message()
		if cause := ex.Cause(); cause != nil {
			return strings.TrimPrefix(msg+": "+Message(cause), ": ")
		}
		return msg
	}
	return err.Error()
}
