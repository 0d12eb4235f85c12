package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"task-tracker/internal/models"
	"task-tracker/internal/repositories"

	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"
)

type TaskService interface {
	AddTask(ctx context.Context, text string) (*models.Task, error)
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	MarkDone(ctx context.Context, id uuid.UUID) (*models.Task, error)
	MarkUndone(ctx context.Context, id uuid.UUID) (*models.Task, error)
	EditTask(ctx context.Context, id uuid.UUID, text string) (*models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID, confirmed bool) (models.Notice, error)
	ListTasks(ctx context.Context) (*Listing, error)
}

// TaskStore is the persistence the service needs; *repositories.TaskRepository
// satisfies it.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByCompletion(ctx context.Context, completed bool) ([]models.Task, error)
	SetCompleted(ctx context.Context, task *models.Task, completed bool) error
	UpdateText(ctx context.Context, task *models.Task, text string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Listing partitions tasks by completion, each newest-updated first.
type Listing struct {
	Pending   []models.Task `json:"pending"`
	Completed []models.Task `json:"completed"`
}

type TaskServiceImpl struct {
	store  TaskStore
	logger *slog.Logger
}

func NewTaskService(store TaskStore) *TaskServiceImpl {
	return &TaskServiceImpl{store: store, logger: slog.Default()}
}

func (s *TaskServiceImpl) AddTask(ctx context.Context, text string) (*models.Task, error) {
	if models.IsBlankText(text) {
		return nil, ErrBlankTask
	}

	task := &models.Task{Text: text}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task added", "task_id", task.ID)
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return task, nil
}

func (s *TaskServiceImpl) MarkDone(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.setCompleted(ctx, id, true)
}

func (s *TaskServiceImpl) MarkUndone(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.setCompleted(ctx, id, false)
}

// setCompleted writes nothing when the flag already has the requested value.
func (s *TaskServiceImpl) setCompleted(ctx context.Context, id uuid.UUID, completed bool) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if task.IsCompleted == completed {
		return task, nil
	}

	if err := s.store.SetCompleted(ctx, task, completed); err != nil {
		return nil, translateStoreError(err)
	}
	task.IsCompleted = completed

	s.logger.Info("task completion changed", "task_id", task.ID, "is_completed", completed)
	return task, nil
}

func (s *TaskServiceImpl) EditTask(ctx context.Context, id uuid.UUID, text string) (*models.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if models.IsBlankText(text) {
		return task, ErrBlankTask
	}

	if err := s.store.UpdateText(ctx, task, text); err != nil {
		return nil, translateStoreError(err)
	}
	task.Text = text

	s.logger.Info("task edited", "task_id", task.ID)
	return task, nil
}

// DeleteTask removes the task only when confirmed. The returned notice tells
// the user which branch ran.
func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID, confirmed bool) (models.Notice, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return models.Notice{}, err
	}

	if !confirmed {
		return models.CanceledNotice, nil
	}

	if err := s.store.Delete(ctx, task.ID); err != nil {
		return models.Notice{}, translateStoreError(err)
	}

	s.logger.Info("task deleted", "task_id", task.ID)
	return models.DeletedNotice, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context) (*Listing, error) {
	listing := &Listing{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tasks, err := s.store.ListByCompletion(gctx, false)
		listing.Pending = tasks
		return err
	})
	g.Go(func() error {
		tasks, err := s.store.ListByCompletion(gctx, true)
		listing.Completed = tasks
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return listing, nil
}

// ParseConfirmation reports whether a submitted confirmation value is
// affirmative. Missing or unrecognised values decline.
func ParseConfirmation(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "t", "1", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func translateStoreError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
