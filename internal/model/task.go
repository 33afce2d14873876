package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Known task statuses. Status is free text; these are the values the
// subtask filters and the tool schemas know about.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	CreatedBy   int64      `json:"created_by"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
	IsAIManaged bool       `json:"is_ai_managed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Subtask hangs off a Task. Ownership is the parent task's owner.
type Subtask struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	CreatedBy   int64      `json:"created_by"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	Status      string     `json:"status"`
	IsAIManaged bool       `json:"is_ai_managed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
