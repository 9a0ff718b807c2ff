package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blues/fundlock/internal/escrow"
	"github.com/blues/fundlock/internal/logic"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
}

func NewCampaignHandler(campaignLogic *logic.CampaignLogic) *CampaignHandler {
	return &CampaignHandler{campaignLogic: campaignLogic}
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Creator         string `json:"creator" binding:"required"`
	FeeRecipient    string `json:"fee_recipient"`
	Admin           string `json:"admin"`
	Goal            string `json:"goal" binding:"required"`
	DurationSec     int64  `json:"duration_sec" binding:"required"`
	ClaimWindowSec  int64  `json:"claim_window_sec" binding:"required"`
	RefundWindowSec int64  `json:"refund_window_sec" binding:"required"`
}

// CreateCampaign 创建活动
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	creator, err := parseAddress(req.Creator)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的创建者地址")
		return
	}
	feeRecipient, err := parseOptionalAddress(req.FeeRecipient)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的费用接收方地址")
		return
	}
	admin, err := parseOptionalAddress(req.Admin)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的管理员地址")
		return
	}
	goal, err := parseAmount(req.Goal)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的目标金额")
		return
	}

	campaign, err := h.campaignLogic.CreateCampaign(logic.CreateCampaignInput{
		Creator:      creator,
		FeeRecipient: feeRecipient,
		Admin:        admin,
		Goal:         goal,
		Duration:     time.Duration(req.DurationSec) * time.Second,
		ClaimWindow:  time.Duration(req.ClaimWindowSec) * time.Second,
		RefundWindow: time.Duration(req.RefundWindowSec) * time.Second,
	})
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	SuccessResponse(c, http.StatusCreated, "活动创建成功", ToCampaignResponse(campaign))
}

// GetCampaigns 分页获取活动列表
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	status := c.Query("status")
	creator := c.Query("creator")
	page, pageSize := pageParams(c, 10)

	campaigns, total, err := h.campaignLogic.GetCampaigns(status, creator, page, pageSize)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	SuccessResponse(c, http.StatusOK, "获取活动列表成功", gin.H{
		"campaigns":  ToCampaignResponseList(campaigns),
		"pagination": NewPagination(page, pageSize, total),
	})
}

// GetCampaign 获取活动详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	campaign, err := h.campaignLogic.GetCampaign(id)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取活动详情成功", ToCampaignResponse(campaign))
}

// GetCampaignStatus 获取活动实时派生状态
func (h *CampaignHandler) GetCampaignStatus(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	status, err := h.campaignLogic.Status(id)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "获取活动状态成功", gin.H{"status": string(status)})
}

// ContributeRequest 贡献请求
type ContributeRequest struct {
	Payer          string `json:"payer" binding:"required"`
	Beneficiary    string `json:"beneficiary"` // 为空时受益人即出资方
	Amount         string `json:"amount" binding:"required"`
	ContributorFee string `json:"contributor_fee"`
	CreatorFee     string `json:"creator_fee"`
}

// Contribute 贡献资金
func (h *CampaignHandler) Contribute(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	payer, err := parseAddress(req.Payer)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的出资方地址")
		return
	}
	beneficiary := payer
	if req.Beneficiary != "" {
		if beneficiary, err = parseAddress(req.Beneficiary); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "无效的受益人地址")
			return
		}
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献金额")
		return
	}
	contributorFee, err := parseOptionalAmount(req.ContributorFee)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献者手续费")
		return
	}
	creatorFee, err := parseOptionalAmount(req.CreatorFee)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的创建者费用")
		return
	}

	if err := h.campaignLogic.Contribute(id, payer, beneficiary, amount, contributorFee, creatorFee); err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "贡献成功", nil)
}

// RefundRequest 退款请求
type RefundRequest struct {
	Contributor   string `json:"contributor" binding:"required"`
	ProcessingFee string `json:"processing_fee"`
}

// Refund 退款
func (h *CampaignHandler) Refund(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	contributor, err := parseAddress(req.Contributor)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献者地址")
		return
	}
	processingFee, err := parseOptionalAmount(req.ProcessingFee)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的处理费")
		return
	}

	amount, err := h.campaignLogic.Refund(id, contributor, processingFee)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "退款成功", gin.H{"amount": amount.String()})
}

// PreviewRefund 查询可退金额
func (h *CampaignHandler) PreviewRefund(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	contributor, err := parseAddress(c.Query("contributor"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的贡献者地址")
		return
	}
	processingFee, err := parseOptionalAmount(c.Query("processing_fee"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的处理费")
		return
	}

	amount, err := h.campaignLogic.PreviewRefund(id, contributor, processingFee)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "查询可退金额成功", gin.H{"amount": amount.String()})
}

// ClaimRequest 提取请求
type ClaimRequest struct {
	Caller        string `json:"caller" binding:"required"`
	ProcessingFee string `json:"processing_fee"`
}

// Claim 创建者提取
func (h *CampaignHandler) Claim(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的调用者地址")
		return
	}
	processingFee, err := parseOptionalAmount(req.ProcessingFee)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的处理费")
		return
	}

	payout, err := h.campaignLogic.Claim(id, caller, processingFee)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "提取成功", gin.H{"amount": payout.String()})
}

// PreviewClaim 查询可提取金额
func (h *CampaignHandler) PreviewClaim(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	caller, err := parseAddress(c.Query("caller"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的调用者地址")
		return
	}
	processingFee, err := parseOptionalAmount(c.Query("processing_fee"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的处理费")
		return
	}

	payout, err := h.campaignLogic.PreviewClaim(id, caller, processingFee)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "查询可提取金额成功", gin.H{"amount": payout.String()})
}

// CancelRequest 取消请求
type CancelRequest struct {
	Caller string `json:"caller" binding:"required"`
}

// Cancel 取消活动
func (h *CampaignHandler) Cancel(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的调用者地址")
		return
	}

	if err := h.campaignLogic.Cancel(id, caller); err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "活动已取消", nil)
}

// Swipe 回收过期活动的剩余资金
func (h *CampaignHandler) Swipe(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	amount, err := h.campaignLogic.Swipe(id)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "回收成功", gin.H{"amount": amount.String()})
}

// GetNonce 查询某身份下一个可用的授权序号
func (h *CampaignHandler) GetNonce(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	addr, err := parseAddress(c.Query("address"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的地址")
		return
	}

	nonce, err := h.campaignLogic.Nonce(id, addr)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "查询授权序号成功", gin.H{"nonce": nonce})
}

// DelegatedRequest 委托授权请求，amount 必须等于校验得出的应付金额
type DelegatedRequest struct {
	Beneficiary      string `json:"beneficiary" binding:"required"`
	SettlementTarget string `json:"settlement_target" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Nonce            uint64 `json:"nonce"`
	Expiry           int64  `json:"expiry" binding:"required"` // Unix秒
	ProcessingFee    string `json:"processing_fee"`
	Payload          string `json:"payload"`                     // hex编码的结算参数
	Signature        string `json:"signature" binding:"required"` // hex编码的65字节签名
}

// parseAuthorization 解析委托授权入参
func parseAuthorization(req DelegatedRequest) (escrow.Authorization, []byte, []byte, error) {
	var a escrow.Authorization

	beneficiary, err := parseAddress(req.Beneficiary)
	if err != nil {
		return a, nil, nil, err
	}
	target, err := parseAddress(req.SettlementTarget)
	if err != nil {
		return a, nil, nil, err
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return a, nil, nil, err
	}
	processingFee, err := parseOptionalAmount(req.ProcessingFee)
	if err != nil {
		return a, nil, nil, err
	}

	payload := []byte{}
	if req.Payload != "" {
		if payload, err = hexutil.Decode(req.Payload); err != nil {
			return a, nil, nil, err
		}
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return a, nil, nil, err
	}

	a = escrow.Authorization{
		Beneficiary:      beneficiary,
		SettlementTarget: target,
		Amount:           amount,
		Nonce:            req.Nonce,
		Expiry:           time.Unix(req.Expiry, 0),
		ProcessingFee:    processingFee,
		PayloadHash:      escrow.PayloadHash(payload),
	}
	return a, sig, payload, nil
}

// DelegatedRefund 凭委托授权退款
func (h *CampaignHandler) DelegatedRefund(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req DelegatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	a, sig, payload, err := parseAuthorization(req)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.campaignLogic.DelegatedRefund(id, a, sig, payload)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "委托退款成功", gin.H{"amount": amount.String()})
}

// DelegatedClaim 凭委托授权提取
func (h *CampaignHandler) DelegatedClaim(c *gin.Context) {
	id, ok := campaignId(c)
	if !ok {
		return
	}

	var req DelegatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	a, sig, payload, err := parseAuthorization(req)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	payout, err := h.campaignLogic.DelegatedClaim(id, a, sig, payload)
	if err != nil {
		EscrowErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "委托提取成功", gin.H{"amount": payout.String()})
}

// campaignId 解析路径中的活动ID
func campaignId(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "无效的活动ID")
		return 0, false
	}
	return id, true
}

// pageParams 解析分页参数
func pageParams(c *gin.Context, defaultSize int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultSize
	}
	return page, pageSize
}
