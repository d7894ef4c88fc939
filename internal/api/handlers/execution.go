package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"webreplay/backend/internal/models"
	"webreplay/backend/pkg/database"
	"webreplay/backend/pkg/response"
)

func GetExecutions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := database.DB.Model(&models.FlowExecution{})
	if flowID := c.Query("flow_id"); flowID != "" {
		query = query.Where("flow_id = ?", flowID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}

	var executions []models.FlowExecution
	err := query.Preload("Flow").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&executions).Error
	if err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}

	response.Success(c, response.PageData{
		List:     executions,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func GetExecution(c *gin.Context) {
	id := c.Param("id")

	var execution models.FlowExecution
	err := database.DB.Preload("Flow").First(&execution, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "execution not found")
		} else {
			response.InternalServerError(c, "database query failed")
		}
		return
	}

	response.Success(c, execution)
}

// GetExecutionStatistics aggregates run counts by status, optionally scoped
// to one flow.
func GetExecutionStatistics(c *gin.Context) {
	type statRow struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}

	query := database.DB.Model(&models.FlowExecution{})
	if flowID := c.Query("flow_id"); flowID != "" {
		query = query.Where("flow_id = ?", flowID)
	}

	var rows []statRow
	err := query.Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		response.InternalServerError(c, "database query failed")
		return
	}

	stats := gin.H{
		"total":     int64(0),
		"passed":    int64(0),
		"failed":    int64(0),
		"cancelled": int64(0),
		"running":   int64(0),
	}
	var total int64
	for _, row := range rows {
		stats[row.Status] = row.Count
		total += row.Count
	}
	stats["total"] = total

	response.Success(c, stats)
}

func DeleteExecution(c *gin.Context) {
	id := c.Param("id")

	result := database.DB.Delete(&models.FlowExecution{}, "id = ?", id)
	if result.Error != nil {
		response.InternalServerError(c, "failed to delete execution")
		return
	}
	if result.RowsAffected == 0 {
		response.NotFound(c, "execution not found")
		return
	}

	response.SuccessWithMessage(c, "execution deleted", nil)
}
