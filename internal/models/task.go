package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Text        string    `json:"task" gorm:"column:task;not null"`
	IsCompleted bool      `json:"is_completed" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"index"`
}

func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate assigns the identifier when the caller left it empty.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID != uuid.Nil {
		return nil
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// IsBlankText reports whether text has no visible characters.
func IsBlankText(text string) bool {
	return strings.TrimSpace(text) == ""
}
