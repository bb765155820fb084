package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/api/mapper"
	"github.com/harrisonrobin/taskmaster/pkg/api/middleware"
	"github.com/harrisonrobin/taskmaster/pkg/apierrors"
	"github.com/harrisonrobin/taskmaster/pkg/focus"
)

type FocusTimer interface {
	Start(now time.Time) error
	Pause(now time.Time) error
	Resume(now time.Time) error
	Reset()
	SetSettings(s focus.Settings) error
	State(now time.Time) focus.State
}

type FocusHandler struct {
	timer FocusTimer
	now   func() time.Time
}

func NewFocusHandler(timer FocusTimer, now func() time.Time) *FocusHandler {
	if now == nil {
		now = time.Now
	}
	return &FocusHandler{timer: timer, now: now}
}

func (h *FocusHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, mapper.ToFocusState(h.timer.State(h.now())))
}

func (h *FocusHandler) Start(c *gin.Context) {
	h.transition(c, h.timer.Start)
}

func (h *FocusHandler) Pause(c *gin.Context) {
	h.transition(c, h.timer.Pause)
}

func (h *FocusHandler) Resume(c *gin.Context) {
	h.transition(c, h.timer.Resume)
}

func (h *FocusHandler) Reset(c *gin.Context) {
	h.timer.Reset()
	h.State(c)
}

func (h *FocusHandler) UpdateSettings(c *gin.Context) {
	lang := middleware.GetLang(c)
	var req dto.FocusSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidFocusSettings, lang),
		)
		return
	}
	if err := h.timer.SetSettings(mapper.FromFocusSettings(req)); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidFocusSettings, lang),
		)
		return
	}
	h.State(c)
}

func (h *FocusHandler) transition(c *gin.Context, op func(time.Time) error) {
	if err := op(h.now()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, focus.ErrInvalidState) {
			status = http.StatusConflict
		}
		c.JSON(status, apierrors.CreateError(status, apierrors.MsgInvalidFocusState, middleware.GetLang(c)))
		return
	}
	h.State(c)
}
