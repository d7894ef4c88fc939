package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"webreplay/backend/internal/models"
	"webreplay/backend/internal/services"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/export"
	"webreplay/backend/pkg/logger"
	"webreplay/backend/pkg/response"
)

type FlowRequest struct {
	Name           string                `json:"name" binding:"required,max=200"`
	Description    string                `json:"description" binding:"max=1000"`
	StartURL       string                `json:"start_url" binding:"required,url"`
	CronExpression string                `json:"cron_expression"`
	Steps          []models.RecordedStep `json:"steps"`
}

type FlowDetail struct {
	models.Flow
	Steps []models.RecordedStep `json:"steps"`
}

func GetFlows(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.Flow{})
	if keyword := c.Query("keyword"); keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}

	var flows []models.Flow
	err := query.Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&flows).Error
	if err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}

	response.Success(c, response.PageData{
		List:     flows,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func CreateFlow(c *gin.Context) {
	userID, _ := currentUserID(c)

	var req FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	flow := models.Flow{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Description:    req.Description,
		StartURL:       req.StartURL,
		CronExpression: req.CronExpression,
		UserID:         userID,
	}
	if err := flow.SetSteps(req.Steps); err != nil {
		response.BadRequest(c, "invalid steps payload")
		return
	}
	if err := database.DB.Create(&flow).Error; err != nil {
		response.InternalServerError(c, "failed to create flow")
		return
	}

	scheduleFlow(&flow)
	response.SuccessWithMessage(c, "flow created", flow)
}

func GetFlow(c *gin.Context) {
	flow, ok := findFlow(c)
	if !ok {
		return
	}
	steps, err := flow.GetSteps()
	if err != nil {
		response.InternalServerError(c, "flow has malformed steps")
		return
	}
	if steps == nil {
		steps = []models.RecordedStep{}
	}
	response.Success(c, FlowDetail{Flow: *flow, Steps: steps})
}

func UpdateFlow(c *gin.Context) {
	flow, ok := findFlow(c)
	if !ok {
		return
	}

	var req FlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	flow.Name = req.Name
	flow.Description = req.Description
	flow.StartURL = req.StartURL
	flow.CronExpression = req.CronExpression
	if req.Steps != nil {
		if err := flow.SetSteps(req.Steps); err != nil {
			response.BadRequest(c, "invalid steps payload")
			return
		}
	}

	if err := database.DB.Save(flow).Error; err != nil {
		response.InternalServerError(c, "failed to update flow")
		return
	}

	scheduleFlow(flow)
	response.SuccessWithMessage(c, "flow updated", flow)
}

func DeleteFlow(c *gin.Context) {
	flow, ok := findFlow(c)
	if !ok {
		return
	}

	if err := database.DB.Delete(flow).Error; err != nil {
		response.InternalServerError(c, "failed to delete flow")
		return
	}

	if services.GlobalScheduler != nil {
		services.GlobalScheduler.RemoveFlowSchedule(flow.ID)
	}
	response.SuccessWithMessage(c, "flow deleted", nil)
}

func ExportFlow(c *gin.Context) {
	flow, ok := findFlow(c)
	if !ok {
		return
	}

	data, err := export.ExportFlow(flow)
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}

	filename := fmt.Sprintf("flow-%s.json", flow.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

func ExportFlows(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var flows []models.Flow
	if err := database.DB.Where("id IN ?", req.IDs).Find(&flows).Error; err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}
	if len(flows) == 0 {
		response.NotFound(c, "no flows found for the given ids")
		return
	}

	data, err := export.ExportFlows(flows)
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="flows.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ImportFlows accepts an export envelope in the request body and persists
// its flows under fresh ids.
func ImportFlows(c *gin.Context) {
	userID, _ := currentUserID(c)

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 10<<20))
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}

	flows, err := export.Import(data, userID)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := database.DB.Create(&flows).Error; err != nil {
		response.InternalServerError(c, "failed to save imported flows")
		return
	}

	for i := range flows {
		scheduleFlow(&flows[i])
	}
	response.SuccessWithMessage(c, fmt.Sprintf("imported %d flows", len(flows)), flows)
}

func findFlow(c *gin.Context) (*models.Flow, bool) {
	id := c.Param("id")
	var flow models.Flow
	err := database.DB.First(&flow, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "flow not found")
		} else {
			response.InternalServerError(c, "database query failed")
		}
		return nil, false
	}
	return &flow, true
}

func scheduleFlow(flow *models.Flow) {
	if services.GlobalScheduler == nil {
		return
	}
	if err := services.GlobalScheduler.AddFlowSchedule(flow); err != nil {
		logger.L().Warn("failed to schedule flow",
			zap.String("flow_id", flow.ID),
			zap.String("cron", flow.CronExpression),
			zap.Error(err))
	}
}
