package handler

import (
	"net/http"

	"github.com/blues/fundlock/internal/treasury"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	treasury *treasury.Treasury
}

func NewAccountHandler(t *treasury.Treasury) *AccountHandler {
	return &AccountHandler{treasury: t}
}

// GetBalance 查询账户余额
func (h *AccountHandler) GetBalance(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}

	balance, err := h.treasury.Balance(addr)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "查询余额成功", gin.H{
		"address": addr.Hex(),
		"balance": balance.String(),
	})
}

// CreditRequest 入金请求
type CreditRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Credit 给账户入金
func (h *AccountHandler) Credit(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}

	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的金额")
		return
	}

	if err := h.treasury.Credit(addr, amount); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "入金成功", nil)
}
