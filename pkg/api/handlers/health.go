package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harrisonrobin/taskmaster/pkg/api/middleware"
)

const (
	StatusOk   = "ok"
	StatusDown = "down"
)

type HealthBasic struct {
	AppName           string `json:"app_name"`
	AppVersion        string `json:"app_version"`
	CurrentSystemTime string `json:"current_system_time"`
	Message           string `json:"message"`
}

type HealthServices struct {
	Storage string `json:"storage"`
	Alerts  int    `json:"alert_clients"`
}

type HealthAdvanced struct {
	AppName           string         `json:"app_name"`
	AppVersion        string         `json:"app_version"`
	CurrentSystemTime string         `json:"current_system_time"`
	Language          string         `json:"language"`
	Tasks             int            `json:"tasks"`
	Status            HealthServices `json:"status"`
}

// StorageHealth reports whether the last write reached storage.
type StorageHealth interface {
	TaskLister
	Unsaved() bool
}

type ClientCounter interface {
	Clients() int
}

type HealthHandler struct {
	store StorageHealth
	hub   ClientCounter
}

func NewHealthHandler(store StorageHealth, hub ClientCounter) *HealthHandler {
	return &HealthHandler{store: store, hub: hub}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	statusCode := http.StatusOK
	message := StatusOk
	if h.store.Unsaved() {
		statusCode = http.StatusInternalServerError
		message = StatusDown
	}

	c.JSON(statusCode, HealthBasic{
		AppName:           "taskmaster",
		AppVersion:        getAppVersion(),
		CurrentSystemTime: time.Now().Format("2006-01-02 15:04:05"),
		Message:           message,
	})
}

func (h *HealthHandler) CheckHealthReport(c *gin.Context) {
	storageStatus := StatusOk
	if h.store.Unsaved() {
		storageStatus = StatusDown
	}
	clients := 0
	if h.hub != nil {
		clients = h.hub.Clients()
	}

	c.JSON(http.StatusOK, HealthAdvanced{
		AppName:           "taskmaster",
		AppVersion:        getAppVersion(),
		CurrentSystemTime: time.Now().Format("2006-01-02 15:04:05"),
		Language:          middleware.GetLang(c),
		Tasks:             len(h.store.Tasks()),
		Status: HealthServices{
			Storage: storageStatus,
			Alerts:  clients,
		},
	})
}

func getAppVersion() string {
	version := os.Getenv("TASKMASTER_VERSION")
	if version == "" {
		return "dev"
	}
	return version
}
