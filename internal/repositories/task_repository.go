package repositories

import (
	"context"
	"errors"
	"fmt"

	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("task not found")

// TaskRepository persists tasks. It performs no validation; callers own the
// non-blank text invariant.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

// ListByCompletion returns tasks with the given flag, most recently updated first.
func (r *TaskRepository) ListByCompletion(ctx context.Context, completed bool) ([]models.Task, error) {
	tasks := []models.Task{}
	err := r.db.WithContext(ctx).
		Where("is_completed = ?", completed).
		Order("updated_at DESC").
		Order("created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// SetCompleted writes only is_completed; gorm refreshes updated_at alongside it.
func (r *TaskRepository) SetCompleted(ctx context.Context, task *models.Task, completed bool) error {
	return r.updateColumn(ctx, task, "is_completed", completed)
}

// UpdateText writes only the task column and updated_at.
func (r *TaskRepository) UpdateText(ctx context.Context, task *models.Task, text string) error {
	return r.updateColumn(ctx, task, "task", text)
}

func (r *TaskRepository) updateColumn(ctx context.Context, task *models.Task, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(task).Update(column, value)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task %s: %w", column, err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Task{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}
