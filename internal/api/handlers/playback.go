package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/player"
	"webreplay/backend/internal/services"
	"webreplay/backend/pkg/response"
)

type PlaybackRequest struct {
	Speed             float64 `json:"speed"`
	StepByStep        bool    `json:"step_by_step"`
	StopOnError       *bool   `json:"stop_on_error"`
	HighlightElements *bool   `json:"highlight_elements"`
}

func StartPlayback(c *gin.Context) {
	userID, _ := currentUserID(c)
	flowID := c.Param("id")

	var req PlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	opts := models.DefaultPlaybackOptions()
	if req.Speed > 0 {
		opts.Speed = req.Speed
	}
	opts.StepByStep = req.StepByStep
	if req.StopOnError != nil {
		opts.StopOnError = *req.StopOnError
	}
	if req.HighlightElements != nil {
		opts.HighlightElements = *req.HighlightElements
	}

	execID, err := services.GlobalPlayback.Start(flowID, opts, userID, "manual")
	if err != nil {
		if errors.Is(err, player.ErrBusy) {
			response.Conflict(c, "a playback session is already running")
			return
		}
		response.InternalServerError(c, "failed to start playback: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "playback started", gin.H{
		"execution_id": execID,
	})
}

func PausePlayback(c *gin.Context) {
	if err := services.GlobalPlayback.Pause(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "playback paused", nil)
}

func ResumePlayback(c *gin.Context) {
	if err := services.GlobalPlayback.Resume(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "playback resumed", nil)
}

func StopPlayback(c *gin.Context) {
	if err := services.GlobalPlayback.Stop(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "playback stopped", nil)
}

// AdvancePlayback triggers the next step of a step-by-step session.
func AdvancePlayback(c *gin.Context) {
	if err := services.GlobalPlayback.Advance(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.SuccessWithMessage(c, "advanced", nil)
}

func GetPlaybackStatus(c *gin.Context) {
	response.Success(c, services.GlobalPlayback.State())
}
