package handler

import (
	"net/http"

	"github.com/blues/fundlock/internal/logic"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RecordHandler struct {
	recordLogic *logic.RecordLogic
}

func NewRecordHandler(db *gorm.DB) *RecordHandler {
	return &RecordHandler{recordLogic: logic.NewRecordLogic(db)}
}

// GetContributions 分页获取活动当前的净贡献列表
func (h *RecordHandler) GetContributions(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c, 20)

	rows, total, err := h.recordLogic.GetContributions(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取净贡献列表成功", gin.H{
		"contributions": ToContributionResponseList(rows),
		"pagination":    NewPagination(page, pageSize, total),
	})
}

// GetContributeRecords 分页获取贡献流水
func (h *RecordHandler) GetContributeRecords(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}
	address := c.Query("address")
	page, pageSize := pageParams(c, 20)

	rows, total, err := h.recordLogic.GetContributeRecords(id, address, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取贡献流水成功", gin.H{
		"records":    ToContributeRecordResponseList(rows),
		"pagination": NewPagination(page, pageSize, total),
	})
}

// GetRefundRecords 分页获取退款流水
func (h *RecordHandler) GetRefundRecords(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c, 20)

	rows, total, err := h.recordLogic.GetRefundRecords(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取退款流水成功", gin.H{
		"refunds":    ToRefundRecordResponseList(rows),
		"pagination": NewPagination(page, pageSize, total),
	})
}

// GetSettlementRecords 分页获取委托结算流水
func (h *RecordHandler) GetSettlementRecords(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}
	page, pageSize := pageParams(c, 20)

	rows, total, err := h.recordLogic.GetSettlementRecords(id, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取结算流水成功", gin.H{
		"settlements": ToSettlementRecordResponseList(rows),
		"pagination":  NewPagination(page, pageSize, total),
	})
}

// GetEvents 分页获取活动事件
func (h *RecordHandler) GetEvents(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}
	eventType := c.Query("type")
	page, pageSize := pageParams(c, 20)

	rows, total, err := h.recordLogic.GetEvents(id, eventType, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取事件列表成功", gin.H{
		"events":     ToEventResponseList(rows),
		"pagination": NewPagination(page, pageSize, total),
	})
}
