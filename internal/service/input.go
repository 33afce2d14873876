package service

import (
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// UpdatePolicy decides what a supplied but empty string field means in a
// partial update. Booleans are applied whenever they are present.
type UpdatePolicy string

const (
	// IgnoreEmpty treats "" as not supplied.
	IgnoreEmpty UpdatePolicy = "ignore-empty"
	// ApplyEmpty writes "" where the column allows it. An empty name,
	// priority or status is still rejected.
	ApplyEmpty UpdatePolicy = "apply-empty"
)

func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	switch UpdatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", IgnoreEmpty:
		return IgnoreEmpty, nil
	case ApplyEmpty:
		return ApplyEmpty, nil
	default:
		return "", fmt.Errorf("unknown update policy %q", s)
	}
}

// TaskInput is the client-supplied field set for tasks and subtasks. A nil
// field was not supplied.
type TaskInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"due_date"`
	Status      *string `json:"status"`
	IsAIManaged *bool   `json:"is_ai_managed"`
}

var dueDateLayouts = []string{
	time.DateTime,
	time.RFC3339,
	time.DateOnly,
}

// ParseDueDate accepts "2006-01-02 15:04:05", RFC 3339 or "2006-01-02".
func ParseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalid("due_date", fmt.Sprintf("due_date %q is not a valid date", s))
}

func parsePriority(s string) (model.Priority, error) {
	p := model.Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", invalid("priority", "priority must be one of low, medium, high")
	}
	return p, nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// patch converts in to a store patch under policy.
func (policy UpdatePolicy) patch(in TaskInput) (store.TaskPatch, error) {
	var p store.TaskPatch
	skip := func(v *string) bool {
		return v == nil || (policy != ApplyEmpty && strings.TrimSpace(*v) == "")
	}

	if !skip(in.Name) {
		name := str(in.Name)
		if name == "" {
			return p, invalid("name", "name cannot be empty")
		}
		p.Name = &name
	}
	if !skip(in.Description) {
		desc := str(in.Description)
		p.Description = &desc
	}
	if !skip(in.Priority) {
		prio, err := parsePriority(*in.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &prio
	}
	// An empty due date never clears the stored one.
	if in.DueDate != nil && str(in.DueDate) != "" {
		due, err := ParseDueDate(*in.DueDate)
		if err != nil {
			return p, err
		}
		p.DueDate = &due
	}
	if !skip(in.Status) {
		status := str(in.Status)
		if status == "" {
			return p, invalid("status", "status cannot be empty")
		}
		p.Status = &status
	}
	if in.IsAIManaged != nil {
		v := *in.IsAIManaged
		p.IsAIManaged = &v
	}

	if p.Empty() {
		return p, ErrNothingToUpdate
	}
	return p, nil
}
