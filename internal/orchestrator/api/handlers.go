package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thedomainai/agentic-stack/internal/models"
	"github.com/thedomainai/agentic-stack/internal/orchestrator"
	"github.com/thedomainai/agentic-stack/pkg/logger"
)

// API provides the HTTP control surface of the orchestrator: task
// submission, task lookup, health and a WebSocket event feed.
type API struct {
	orc      *orchestrator.Orchestrator
	logger   *logger.Logger
	conns    *ConnectionManager
	upgrader websocket.Upgrader
}

// NewAPI creates the handler set and registers itself as the orchestrator's
// event sink so task state changes reach the WebSocket subscribers.
func NewAPI(orc *orchestrator.Orchestrator, log *logger.Logger) *API {
	a := &API{
		orc:    orc,
		logger: log,
		conns:  NewConnectionManager(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // In production, implement a proper origin check.
			},
		},
	}
	orc.SetEventSink(a.pushEvent)
	return a
}

// RegisterRoutes wires the handlers onto the router.
func (a *API) RegisterRoutes(r gin.IRouter) {
	r.POST("/tasks", a.SubmitTaskHandler)
	r.GET("/tasks/:id", a.GetTaskHandler)
	r.GET("/health", a.HealthHandler)
	r.GET("/ws/tasks", a.WebSocketHandler)
}

func (a *API) pushEvent(event orchestrator.TaskEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to encode task event")
		return
	}
	a.conns.Broadcast(data)
}

// SubmitTaskHandler accepts a new task, routes it and queues the assignment.
func (a *API) SubmitTaskHandler(c *gin.Context) {
	var payload struct {
		Title        string                 `json:"title" binding:"required"`
		Description  string                 `json:"description"`
		Priority     models.TaskPriority    `json:"priority"`
		ParentTaskID string                 `json:"parent_task_id"`
		Tags         []string               `json:"tags"`
		Metadata     map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	task, err := a.orc.SubmitTask(c.Request.Context(), orchestrator.TaskSpec{
		Title:        payload.Title,
		Description:  payload.Description,
		Priority:     payload.Priority,
		ParentTaskID: payload.ParentTaskID,
		Tags:         payload.Tags,
		Metadata:     payload.Metadata,
	})
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to submit task")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit task"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id":        task.TaskID,
		"status":         task.Status,
		"assigned_agent": task.AssignedAgent,
	})
}

// GetTaskHandler returns a task snapshot by id.
func (a *API) GetTaskHandler(c *gin.Context) {
	taskID := c.Param("id")

	task, found, err := a.orc.GetTask(c.Request.Context(), taskID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

// HealthHandler reports aggregated system health. Degraded still answers
// 200; only an unhealthy core returns 503.
func (a *API) HealthHandler(c *gin.Context) {
	health := a.orc.SystemHealth(c.Request.Context())
	code := http.StatusOK
	if health["status"] == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// WebSocketHandler upgrades the connection and subscribes it to task events.
func (a *API) WebSocketHandler(c *gin.Context) {
	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to upgrade WebSocket connection")
		return
	}

	connID := uuid.New().String()
	a.conns.Add(connID, conn)

	go func() {
		defer a.conns.Remove(connID)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				break
			}
		}
	}()
}
