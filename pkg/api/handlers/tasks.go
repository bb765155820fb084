package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/api/mapper"
	"github.com/harrisonrobin/taskmaster/pkg/api/middleware"
	"github.com/harrisonrobin/taskmaster/pkg/api/validation"
	"github.com/harrisonrobin/taskmaster/pkg/apierrors"
	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/views"
)

// TaskLister is the read side of the task store.
type TaskLister interface {
	Tasks() []model.Task
}

type TaskStore interface {
	TaskLister
	Get(id string) (model.Task, bool)
	Create(ctx context.Context, d model.Draft) (model.Task, error)
	Update(ctx context.Context, id string, p model.Patch) (model.Task, error)
	Advance(ctx context.Context, id string) (model.Task, error)
	Delete(ctx context.Context, id string) (model.Task, error)
}

type TaskHandler struct {
	store TaskStore
	now   func() time.Time
}

func NewTaskHandler(store TaskStore, now func() time.Time) *TaskHandler {
	if now == nil {
		now = time.Now
	}
	return &TaskHandler{store: store, now: now}
}

// ListTasks returns the collection, optionally narrowed by ?view=.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	lang := middleware.GetLang(c)
	now := h.now()
	tasks, err := views.Select(c.DefaultQuery("view", "all"), h.store.Tasks(), now)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidView, lang),
		)
		return
	}

	c.JSON(http.StatusOK, mapper.ToTaskItems(tasks, now))
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := h.store.Get(c.Param("id"))
	if !ok {
		lang := middleware.GetLang(c)
		c.JSON(
			http.StatusNotFound,
			apierrors.CreateError(http.StatusNotFound, apierrors.MsgTaskNotFound, lang),
		)
		return
	}
	c.JSON(http.StatusOK, mapper.ToTaskItem(task, h.now()))
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	lang := middleware.GetLang(c)

	var req dto.CreateTaskRequest
	raw, err := bindWithRaw(c, &req)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidTaskPayload, lang),
		)
		return
	}
	draft, err := validation.BuildDraft(req, raw, h.now().Location())
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidTaskPayload, lang),
		)
		return
	}

	task, err := h.store.Create(c.Request.Context(), draft)
	if err != nil {
		h.writeStoreError(c, err, apierrors.MsgFailCreateTask)
		return
	}
	c.JSON(http.StatusCreated, mapper.ToTaskItem(task, h.now()))
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	lang := middleware.GetLang(c)

	var req dto.UpdateTaskRequest
	raw, err := bindWithRaw(c, &req)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidTaskPayload, lang),
		)
		return
	}
	patch, err := validation.BuildPatch(req, raw, h.now().Location())
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidTaskPayload, lang),
		)
		return
	}

	task, err := h.store.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeStoreError(c, err, apierrors.MsgFailUpdateTask)
		return
	}
	c.JSON(http.StatusOK, mapper.ToTaskItem(task, h.now()))
}

// AdvanceTask moves the task one step along the status cycle.
func (h *TaskHandler) AdvanceTask(c *gin.Context) {
	task, err := h.store.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, apierrors.MsgFailUpdateTask)
		return
	}
	c.JSON(http.StatusOK, mapper.ToTaskItem(task, h.now()))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if _, err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeStoreError(c, err, apierrors.MsgFailDeleteTask)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) writeStoreError(c *gin.Context, err error, failKey string) {
	lang := middleware.GetLang(c)
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		c.JSON(
			http.StatusNotFound,
			apierrors.CreateError(http.StatusNotFound, apierrors.MsgTaskNotFound, lang),
		)
	case errors.Is(err, model.ErrInvalidTask):
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidTaskPayload, lang),
		)
	default:
		zap.L().Error("task store operation failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, failKey, lang),
		)
	}
}

// bindWithRaw binds and validates the JSON body into req and also returns
// it as a field map, so callers can tell absent fields from null ones.
func bindWithRaw(c *gin.Context, req any) (map[string]json.RawMessage, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if err := binding.JSON.BindBody(body, req); err != nil {
		return nil, err
	}
	return raw, nil
}
