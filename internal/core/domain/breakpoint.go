package domain

import (
	"time"
)

// BreakpointAction defines what happens when a breakpoint is hit.
type BreakpointAction string

const (
	ActionCapture BreakpointAction = "CAPTURE"
	ActionLog     BreakpointAction = "LOG"
)

// LogLevel is the severity of a logpoint message.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// SourceLocation is a line in a source file.
type SourceLocation struct {
	Path   string `json:"path,omitempty"`
	Line   int32  `json:"line,omitempty"`
	Column int32  `json:"column,omitempty"`
}

// Variable is a captured value, possibly with members.
type Variable struct {
	Name          string         `json:"name,omitempty"`
	Value         string         `json:"value,omitempty"`
	Type          string         `json:"type,omitempty"`
	Members       []*Variable    `json:"members,omitempty"`
	VarTableIndex *int32         `json:"var_table_index,omitempty"`
	Status        *StatusMessage `json:"status,omitempty"`
}

// StackFrame is a single frame of a captured call stack.
type StackFrame struct {
	Function  string          `json:"function,omitempty"`
	Location  *SourceLocation `json:"location,omitempty"`
	Arguments []*Variable     `json:"arguments,omitempty"`
	Locals    []*Variable     `json:"locals,omitempty"`
}

// Breakpoint is a breakpoint specification together with its mutable state.
//
// Location, Condition and Expressions form the specification. Their values may
// be canonicalized by an agent (for example, snapping the line number) but the
// semantics must not change. The agent echoes the whole breakpoint on update.
type Breakpoint struct {
	Id                   string            `json:"id,omitempty"`
	Action               BreakpointAction  `json:"action,omitempty"`
	Location             *SourceLocation   `json:"location,omitempty"`
	Condition            string            `json:"condition,omitempty"`
	Expressions          []string          `json:"expressions,omitempty"`
	LogMessageFormat     string            `json:"log_message_format,omitempty"`
	LogLevel             LogLevel          `json:"log_level,omitempty"`
	IsFinalState         bool              `json:"is_final_state,omitempty"`
	CreateTime           *time.Time        `json:"create_time,omitempty"`
	FinalTime            *time.Time        `json:"final_time,omitempty"`
	UserEmail            string            `json:"user_email,omitempty"`
	Status               *StatusMessage    `json:"status,omitempty"`
	StackFrames          []*StackFrame     `json:"stack_frames,omitempty"`
	EvaluatedExpressions []*Variable       `json:"evaluated_expressions,omitempty"`
	VariableTable        []*Variable       `json:"variable_table,omitempty"`
	Labels               map[string]string `json:"labels,omitempty"`
}

// Spec returns the semantically immutable part of the breakpoint.
func (b *Breakpoint) Spec() BreakpointSpec {
	spec := BreakpointSpec{
		Condition:   b.Condition,
		Expressions: append([]string(nil), b.Expressions...),
	}
	if b.Location != nil {
		loc := *b.Location
		spec.Location = &loc
	}
	return spec
}

// BreakpointSpec is the location, condition and expressions of a breakpoint.
type BreakpointSpec struct {
	Location    *SourceLocation
	Condition   string
	Expressions []string
}

// Complete marks the breakpoint final with the given status.
func (b *Breakpoint) Complete(status *StatusMessage, at time.Time) {
	b.IsFinalState = true
	b.Status = status
	t := at.UTC()
	b.FinalTime = &t
}
