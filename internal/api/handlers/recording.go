package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/services"
	"webreplay/backend/pkg/logger"
	"webreplay/backend/pkg/response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func StartRecording(c *gin.Context) {
	var req struct {
		StartURL string `json:"start_url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	state, err := services.GlobalRecording.Start(req.StartURL)
	if err != nil {
		response.Conflict(c, "failed to start recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording started", state)
}

func StopRecording(c *gin.Context) {
	steps, err := services.GlobalRecording.Stop()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if steps == nil {
		steps = []models.RecordedStep{}
	}

	response.SuccessWithMessage(c, "recording stopped", gin.H{
		"steps": steps,
	})
}

func GetRecordingStatus(c *gin.Context) {
	response.Success(c, services.GlobalRecording.State())
}

// SaveRecording persists the captured steps as a new flow. The client sends
// the steps back explicitly so it can trim or reorder them before saving.
func SaveRecording(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		response.Unauthorized(c, "not logged in")
		return
	}

	var req struct {
		Name        string                `json:"name" binding:"required,max=200"`
		Description string                `json:"description" binding:"max=1000"`
		StartURL    string                `json:"start_url" binding:"required,url"`
		Steps       []models.RecordedStep `json:"steps" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	flow, err := services.GlobalRecording.SaveFlow(req.Name, req.Description, req.StartURL, req.Steps, userID)
	if err != nil {
		response.InternalServerError(c, "failed to save flow: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "flow saved", flow)
}

// RecordingWebSocket streams committed steps to the client as they are
// captured. The connection is read-discarding; it exists only for pushes.
func RecordingWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	services.GlobalRecording.AttachConn(conn)
	defer services.GlobalRecording.DetachConn(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
