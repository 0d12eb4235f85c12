package services

import (
	"errors"

	"task-tracker/internal/models"
)

// ErrTaskNotFound is returned for an id with no stored task.
var ErrTaskNotFound = errors.New("task not found")

// ValidationError rejects input before any mutation. Notice is what the user
// should be shown.
type ValidationError struct {
	Field  string
	Notice models.Notice
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Notice.Message
}

var ErrBlankTask = &ValidationError{Field: "task", Notice: models.BlankTaskNotice}
