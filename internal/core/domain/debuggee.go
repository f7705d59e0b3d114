package domain

// Debuggee represents an application instance under debug.
//
// Agents attached to replicas of the same application register with identical
// content and receive the same Id from the controller.
type Debuggee struct {
	// Id is assigned by the controller and is empty when registering.
	Id           string            `json:"id,omitempty"`
	Project      string            `json:"project,omitempty"`
	Uniquifier   string            `json:"uniquifier,omitempty"`
	Description  string            `json:"description,omitempty"`
	IsInactive   bool              `json:"is_inactive,omitempty"`
	AgentVersion string            `json:"agent_version,omitempty"`
	IsDisabled   bool              `json:"is_disabled,omitempty"`
	Status       *StatusMessage    `json:"status,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// Clone returns a deep copy of the debuggee.
func (d *Debuggee) Clone() *Debuggee {
	if d == nil {
		return nil
	}
	out := *d
	out.Status = d.Status.Clone()
	if d.Labels != nil {
		out.Labels = make(map[string]string, len(d.Labels))
		for k, v := range d.Labels {
			out.Labels[k] = v
		}
	}
	return &out
}

// StatusReference identifies which part of a message a status refers to.
type StatusReference string

const (
	RefersToUnspecified          StatusReference = "UNSPECIFIED"
	RefersToBreakpointSource     StatusReference = "BREAKPOINT_SOURCE_LOCATION"
	RefersToBreakpointCondition  StatusReference = "BREAKPOINT_CONDITION"
	RefersToBreakpointExpression StatusReference = "BREAKPOINT_EXPRESSION"
	RefersToBreakpointAge        StatusReference = "BREAKPOINT_AGE"
	RefersToVariableName         StatusReference = "VARIABLE_NAME"
	RefersToVariableValue        StatusReference = "VARIABLE_VALUE"
)

// FormatMessage is a message with $0..$9 placeholders.
type FormatMessage struct {
	Format     string   `json:"format,omitempty"`
	Parameters []string `json:"parameters,omitempty"`
}

// StatusMessage describes the status of a debuggee, breakpoint or variable.
type StatusMessage struct {
	IsError     bool            `json:"is_error,omitempty"`
	RefersTo    StatusReference `json:"refers_to,omitempty"`
	Description *FormatMessage  `json:"description,omitempty"`
}

func (s *StatusMessage) Clone() *StatusMessage {
	if s == nil {
		return nil
	}
	out := *s
	if s.Description != nil {
		desc := *s.Description
		desc.Parameters = append([]string(nil), s.Description.Parameters...)
		out.Description = &desc
	}
	return &out
}
