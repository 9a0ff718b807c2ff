package handler

import (
	"errors"
	"net/http"

	"github.com/blues/fundlock/internal/escrow"
	"github.com/blues/fundlock/internal/logic"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// EscrowErrorResponse 把账本动作错误映射为HTTP状态码
func EscrowErrorResponse(c *gin.Context, err error) {
	ErrorResponse(c, statusForError(err), err.Error())
}

// statusForError 账本错误到HTTP状态码的映射：
// 授权失败403、入参非法400、状态或窗口冲突409、外部划转失败502
func statusForError(err error) int {
	switch {
	case errors.Is(err, logic.ErrCampaignNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrNotCreator),
		errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, escrow.ErrInvalidAuthorization),
		errors.Is(err, escrow.ErrAuthorizationExpired):
		return http.StatusForbidden
	case errors.Is(err, escrow.ErrZeroAmount),
		errors.Is(err, escrow.ErrZeroContribution),
		errors.Is(err, escrow.ErrFeeExceedsAmount),
		errors.Is(err, escrow.ErrProcessingFeeTooHigh),
		errors.Is(err, escrow.ErrInsufficientQualifyingBalance):
		return http.StatusBadRequest
	case errors.Is(err, escrow.ErrAfterDeadline),
		errors.Is(err, escrow.ErrClaimWindowExpired),
		errors.Is(err, escrow.ErrWindowNotElapsed),
		errors.Is(err, escrow.ErrRefundDuringClaimWindow),
		errors.Is(err, escrow.ErrGoalNotReached),
		errors.Is(err, escrow.ErrAlreadyClaimed),
		errors.Is(err, escrow.ErrAlreadyCancelled),
		errors.Is(err, escrow.ErrCampaignFailed),
		errors.Is(err, escrow.ErrCampaignCancelled),
		errors.Is(err, escrow.ErrCampaignClaimed),
		errors.Is(err, escrow.ErrCampaignFinalized):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrFailedTransfer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
