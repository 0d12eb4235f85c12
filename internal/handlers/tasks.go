package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"task-tracker/internal/flash"
	"task-tracker/internal/middleware"
	"task-tracker/internal/models"
	"task-tracker/internal/monitoring"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

const (
	homePath = "/"

	fieldTask      = "task"
	fieldConfirmed = "confirmed"
)

type TaskHandler struct {
	taskService services.TaskService
	notices     flash.Store
	logger      *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, notices flash.Store) *TaskHandler {
	return &TaskHandler{taskService: taskService, notices: notices, logger: slog.Default()}
}

// Register mounts the task pages on r.
func (h *TaskHandler) Register(r gin.IRoutes) {
	r.GET("/", h.Home)
	r.GET("/add-task", h.AddTask)
	r.POST("/add-task", h.AddTask)
	r.GET("/mark-as-done/:id", h.MarkDone)
	r.GET("/mark-as-undone/:id", h.MarkUndone)
	r.GET("/edit-task/:id", h.EditTaskForm)
	r.POST("/edit-task/:id", h.EditTask)
	r.GET("/delete-task/:id", h.DeleteTaskForm)
	r.POST("/delete-task/:id", h.DeleteTask)
}

func (h *TaskHandler) Home(c *gin.Context) {
	listing, err := h.taskService.ListTasks(c.Request.Context())
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	h.render(c, http.StatusOK, "home.html", gin.H{
		"Pending":   listing.Pending,
		"Completed": listing.Completed,
	})
}

func (h *TaskHandler) AddTask(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Redirect(http.StatusFound, homePath)
		return
	}

	_, err := h.taskService.AddTask(c.Request.Context(), c.PostForm(fieldTask))
	if h.rejectInvalid(c, err, homePath) {
		return
	}
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	monitoring.RecordTaskEvent(monitoring.EventTaskAdded)
	c.Redirect(http.StatusFound, homePath)
}

func (h *TaskHandler) MarkDone(c *gin.Context) {
	h.setCompleted(c, true)
}

func (h *TaskHandler) MarkUndone(c *gin.Context) {
	h.setCompleted(c, false)
}

func (h *TaskHandler) setCompleted(c *gin.Context, completed bool) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	var err error
	event := monitoring.EventTaskCompleted
	if completed {
		_, err = h.taskService.MarkDone(c.Request.Context(), id)
	} else {
		event = monitoring.EventTaskReopened
		_, err = h.taskService.MarkUndone(c.Request.Context(), id)
	}
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	monitoring.RecordTaskEvent(event)
	c.Redirect(http.StatusFound, homePath)
}

func (h *TaskHandler) EditTaskForm(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	h.render(c, http.StatusOK, "edit_task.html", gin.H{"Title": "Edit task", "Task": task})
}

func (h *TaskHandler) EditTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	_, err := h.taskService.EditTask(c.Request.Context(), id, c.PostForm(fieldTask))
	if h.rejectInvalid(c, err, editPath(id)) {
		return
	}
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	monitoring.RecordTaskEvent(monitoring.EventTaskEdited)
	c.Redirect(http.StatusFound, homePath)
}

func (h *TaskHandler) DeleteTaskForm(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	h.render(c, http.StatusOK, "delete_task.html", gin.H{"Title": "Delete task", "Task": task})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	confirmed := services.ParseConfirmation(c.PostForm(fieldConfirmed))
	notice, err := h.taskService.DeleteTask(c.Request.Context(), id, confirmed)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	if notice == models.DeletedNotice {
		monitoring.RecordTaskEvent(monitoring.EventTaskDeleted)
	}
	h.addNotice(c, notice)
	c.Redirect(http.StatusFound, homePath)
}

// taskID renders the not-found page for ids that cannot name a task.
func (h *TaskHandler) taskID(c *gin.Context) (uuid.UUID, bool) {
	id := uuid.FromStringOrNil(c.Param("id"))
	if id == uuid.Nil {
		h.handleTaskError(c, services.ErrTaskNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// rejectInvalid queues the notice of a validation error and redirects to
// target. It reports whether err was such an error.
func (h *TaskHandler) rejectInvalid(c *gin.Context, err error, target string) bool {
	var verr *services.ValidationError
	if !errors.As(err, &verr) {
		return false
	}

	monitoring.RecordTaskEvent(monitoring.EventTaskRejected)
	h.addNotice(c, verr.Notice)
	c.Redirect(http.StatusFound, target)
	return true
}

func (h *TaskHandler) addNotice(c *gin.Context, notice models.Notice) {
	if err := h.notices.Add(c.Writer, c.Request, notice); err != nil {
		h.logger.Warn("failed to queue notice", "message", notice.Message, "error", err)
	}
}

func (h *TaskHandler) render(c *gin.Context, status int, name string, data gin.H) {
	notices, err := h.notices.Pop(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("failed to read notices", "error", err)
	}

	data["Notices"] = notices
	data["CSRFToken"] = middleware.CSRFToken(c)
	c.HTML(status, name, data)
}

// NotFound renders the not-found page. It also serves unmatched routes.
func (h *TaskHandler) NotFound(c *gin.Context) {
	h.render(c, http.StatusNotFound, "404.html", gin.H{"Title": "Not found"})
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrTaskNotFound) {
		h.NotFound(c)
		return
	}

	h.logger.Error("task request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"error", err,
	)
	h.render(c, http.StatusInternalServerError, "500.html", gin.H{"Title": "Error"})
}

func editPath(id uuid.UUID) string {
	return "/edit-task/" + id.String()
}
