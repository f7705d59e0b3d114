package domain

import (
	"errors"
	"fmt"
)

// ErrMissingField is returned by Validate when a required field is unset.
var ErrMissingField = errors.New("missing required field")

// RegisterDebuggeeRequest registers a debuggee with the controller.
type RegisterDebuggeeRequest struct {
	Debuggee *Debuggee `json:"debuggee,omitempty"`
}

// Validate checks the fields the controller requires.
func (r *RegisterDebuggeeRequest) Validate() error {
	if r.Debuggee == nil {
		return fmt.Errorf("%w: debuggee", ErrMissingField)
	}
	required := []struct {
		name  string
		value string
	}{
		{"debuggee.project", r.Debuggee.Project},
		{"debuggee.uniquifier", r.Debuggee.Uniquifier},
		{"debuggee.description", r.Debuggee.Description},
		{"debuggee.agent_version", r.Debuggee.AgentVersion},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}

// RegisterDebuggeeResponse carries the registered debuggee.
type RegisterDebuggeeResponse struct {
	Debuggee *Debuggee `json:"debuggee,omitempty"`
	AgentId  string    `json:"agent_id,omitempty"`
}

// DebuggeeID returns the id assigned by the controller.
func (r *RegisterDebuggeeResponse) DebuggeeID() string {
	if r == nil || r.Debuggee == nil {
		return ""
	}
	return r.Debuggee.Id
}

// ListActiveBreakpointsRequest lists the active breakpoints of a debuggee.
//
// When WaitToken is set to the NextWaitToken of a previous response the
// controller holds the call until the list changes or its wait timeout expires.
type ListActiveBreakpointsRequest struct {
	DebuggeeId       string `json:"debuggee_id,omitempty"`
	WaitToken        string `json:"wait_token,omitempty"`
	SuccessOnTimeout bool   `json:"success_on_timeout,omitempty"`
	AgentId          string `json:"agent_id,omitempty"`
}

func (r *ListActiveBreakpointsRequest) Validate() error {
	if r.DebuggeeId == "" {
		return fmt.Errorf("%w: debuggee_id", ErrMissingField)
	}
	return nil
}

// ListActiveBreakpointsResponse is the controller's list, passed through unmodified.
type ListActiveBreakpointsResponse struct {
	Breakpoints   []*Breakpoint `json:"breakpoints,omitempty"`
	NextWaitToken string        `json:"next_wait_token,omitempty"`
	WaitExpired   bool          `json:"wait_expired,omitempty"`
}

// UpdateActiveBreakpointRequest reports breakpoint state back to the controller.
type UpdateActiveBreakpointRequest struct {
	DebuggeeId string      `json:"debuggee_id,omitempty"`
	Breakpoint *Breakpoint `json:"breakpoint,omitempty"`
}

func (r *UpdateActiveBreakpointRequest) Validate() error {
	if r.DebuggeeId == "" {
		return fmt.Errorf("%w: debuggee_id", ErrMissingField)
	}
	if r.Breakpoint == nil {
		return fmt.Errorf("%w: breakpoint", ErrMissingField)
	}
	if r.Breakpoint.Id == "" {
		return fmt.Errorf("%w: breakpoint.id", ErrMissingField)
	}
	return nil
}

// UpdateActiveBreakpointResponse is empty and reserved for future extensions.
type UpdateActiveBreakpointResponse struct{}
