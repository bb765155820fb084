package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/api/mapper"
	"github.com/harrisonrobin/taskmaster/pkg/api/middleware"
	"github.com/harrisonrobin/taskmaster/pkg/apierrors"
	"github.com/harrisonrobin/taskmaster/pkg/views"
)

type ViewHandler struct {
	tasks TaskLister
	now   func() time.Time
	trend views.TrendOptions
}

func NewViewHandler(tasks TaskLister, now func() time.Time, trend views.TrendOptions) *ViewHandler {
	if now == nil {
		now = time.Now
	}
	return &ViewHandler{tasks: tasks, now: now, trend: trend}
}

func (h *ViewHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, views.ComputeStats(h.tasks.Tasks(), h.now()))
}

func (h *ViewHandler) Dashboard(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, mapper.ToDashboard(views.BuildDashboard(h.tasks.Tasks(), now), now))
}

// Analytics serves ?range=daily|weekly|monthly|yearly, weekly by default.
func (h *ViewHandler) Analytics(c *gin.Context) {
	lang := middleware.GetLang(c)
	r, err := views.ParseRange(c.DefaultQuery("range", string(views.RangeWeekly)))
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidRange, lang),
		)
		return
	}
	a, err := views.ComputeAnalytics(h.tasks.Tasks(), h.now(), r, h.trend)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidRange, lang),
		)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Month serves per-day summaries for ?month=YYYY-MM, the current month by
// default.
func (h *ViewHandler) Month(c *gin.Context) {
	now := h.now()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if q := c.Query("month"); q != "" {
		parsed, err := time.ParseInLocation("2006-01", q, now.Location())
		if err != nil {
			c.JSON(
				http.StatusBadRequest,
				apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidMonth, middleware.GetLang(c)),
			)
			return
		}
		month = parsed
	}
	c.JSON(http.StatusOK, views.Month(h.tasks.Tasks(), month.Year(), month.Month(), now.Location()))
}

// Day lists the tasks due on :date (YYYY-MM-DD).
func (h *ViewHandler) Day(c *gin.Context) {
	now := h.now()
	day, err := time.ParseInLocation(time.DateOnly, c.Param("date"), now.Location())
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidDate, middleware.GetLang(c)),
		)
		return
	}
	c.JSON(http.StatusOK, dto.CalendarDay{
		Date:  day.Format(time.DateOnly),
		Tasks: mapper.ToTaskItems(views.OnDay(h.tasks.Tasks(), day), now),
	})
}
