package handler

import (
	"errors"
	"math/big"
	"time"

	"github.com/blues/fundlock/internal/model"
	"github.com/ethereum/go-ethereum/common"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

// NewPagination 计算分页信息
func NewPagination(page, pageSize int, total int64) Pagination {
	totalPage := total / int64(pageSize)
	if total%int64(pageSize) != 0 {
		totalPage++
	}
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	}
}

// 活动相关响应模型

// CampaignResponse 活动响应模型
type CampaignResponse struct {
	ID              int64     `json:"id"`
	Address         string    `json:"address"`
	Creator         string    `json:"creator"`
	FeeRecipient    string    `json:"feeRecipient"`
	Admin           string    `json:"admin"`
	ChainID         int64     `json:"chainId"`
	Goal            string    `json:"goal"`
	Status          string    `json:"status"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	ClaimWindowSec  int64     `json:"claimWindowSec"`
	RefundWindowSec int64     `json:"refundWindowSec"`
	Custody         string    `json:"custody"`
	ContributorFees string    `json:"contributorFees"`
	CreatorFees     string    `json:"creatorFees"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ContributionResponse 净贡献响应模型
type ContributionResponse struct {
	Address   string    `json:"address"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ContributeRecordResponse 贡献流水响应模型
type ContributeRecordResponse struct {
	ID             int64     `json:"id"`
	CampaignID     int64     `json:"campaignId"`
	Payer          string    `json:"payer"`
	Address        string    `json:"address"`
	Amount         string    `json:"amount"`
	ContributorFee string    `json:"contributorFee"`
	CreatorFee     string    `json:"creatorFee"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RefundRecordResponse 退款流水响应模型
type RefundRecordResponse struct {
	ID            int64     `json:"id"`
	CampaignID    int64     `json:"campaignId"`
	Address       string    `json:"address"`
	Recipient     string    `json:"recipient"`
	Amount        string    `json:"amount"`
	ProcessingFee string    `json:"processingFee"`
	Delegated     bool      `json:"delegated"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SettlementRecordResponse 结算流水响应模型
type SettlementRecordResponse struct {
	ID         int64     `json:"id"`
	CampaignID int64     `json:"campaignId"`
	Target     string    `json:"target"`
	Amount     string    `json:"amount"`
	Payload    string    `json:"payload"`
	TxHash     string    `json:"txHash"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EventResponse 事件响应模型
type EventResponse struct {
	ID             int64     `json:"id"`
	CampaignID     int64     `json:"campaignId"`
	EventType      string    `json:"eventType"`
	Address        string    `json:"address"`
	Recipient      string    `json:"recipient"`
	Amount         string    `json:"amount"`
	CreatorFee     string    `json:"creatorFee"`
	ContributorFee string    `json:"contributorFee"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// 转换函数

// ToCampaignResponse 将数据库模型转换为响应模型
func ToCampaignResponse(campaign *model.CampaignModel) CampaignResponse {
	return CampaignResponse{
		ID:              campaign.Id,
		Address:         campaign.Address,
		Creator:         campaign.CreatorAddress,
		FeeRecipient:    campaign.FeeRecipient,
		Admin:           campaign.AdminAddress,
		ChainID:         campaign.ChainId,
		Goal:            campaign.Goal,
		Status:          campaign.Status,
		StartTime:       campaign.StartTime,
		EndTime:         campaign.EndTime,
		ClaimWindowSec:  campaign.ClaimWindowSec,
		RefundWindowSec: campaign.RefundWindowSec,
		Custody:         campaign.Custody,
		ContributorFees: campaign.ContributorFees,
		CreatorFees:     campaign.CreatorFees,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
	}
}

// ToCampaignResponseList 将数据库模型列表转换为响应模型列表
func ToCampaignResponseList(campaigns []model.CampaignModel) []CampaignResponse {
	result := make([]CampaignResponse, len(campaigns))
	for i, campaign := range campaigns {
		result[i] = ToCampaignResponse(&campaign)
	}
	return result
}

// ToContributionResponseList 将净贡献列表转换为响应模型列表
func ToContributionResponseList(rows []model.ContributionModel) []ContributionResponse {
	result := make([]ContributionResponse, len(rows))
	for i, row := range rows {
		result[i] = ContributionResponse{
			Address:   row.Address,
			Amount:    row.Amount,
			UpdatedAt: row.UpdatedAt,
		}
	}
	return result
}

// ToContributeRecordResponseList 将贡献流水列表转换为响应模型列表
func ToContributeRecordResponseList(rows []model.ContributeRecordModel) []ContributeRecordResponse {
	result := make([]ContributeRecordResponse, len(rows))
	for i, row := range rows {
		result[i] = ContributeRecordResponse{
			ID:             row.Id,
			CampaignID:     row.CampaignId,
			Payer:          row.PayerAddress,
			Address:        row.Address,
			Amount:         row.Amount,
			ContributorFee: row.ContributorFee,
			CreatorFee:     row.CreatorFee,
			CreatedAt:      row.CreatedAt,
		}
	}
	return result
}

// ToRefundRecordResponseList 将退款流水列表转换为响应模型列表
func ToRefundRecordResponseList(rows []model.RefundRecordModel) []RefundRecordResponse {
	result := make([]RefundRecordResponse, len(rows))
	for i, row := range rows {
		result[i] = RefundRecordResponse{
			ID:            row.Id,
			CampaignID:    row.CampaignId,
			Address:       row.Address,
			Recipient:     row.RecipientAddress,
			Amount:        row.Amount,
			ProcessingFee: row.ProcessingFee,
			Delegated:     row.Delegated,
			CreatedAt:     row.CreatedAt,
		}
	}
	return result
}

// ToSettlementRecordResponseList 将结算流水列表转换为响应模型列表
func ToSettlementRecordResponseList(rows []model.SettlementRecordModel) []SettlementRecordResponse {
	result := make([]SettlementRecordResponse, len(rows))
	for i, row := range rows {
		result[i] = SettlementRecordResponse{
			ID:         row.Id,
			CampaignID: row.CampaignId,
			Target:     row.TargetAddress,
			Amount:     row.Amount,
			Payload:    row.Payload,
			TxHash:     row.TxHash,
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
		}
	}
	return result
}

// ToEventResponseList 将事件列表转换为响应模型列表
func ToEventResponseList(rows []model.EventModel) []EventResponse {
	result := make([]EventResponse, len(rows))
	for i, row := range rows {
		result[i] = EventResponse{
			ID:             row.Id,
			CampaignID:     row.CampaignId,
			EventType:      row.EventType,
			Address:        row.Address,
			Recipient:      row.Recipient,
			Amount:         row.Amount,
			CreatorFee:     row.CreatorFee,
			ContributorFee: row.ContributorFee,
			OccurredAt:     row.OccurredAt,
		}
	}
	return result
}

// 入参解析

// parseAddress 解析必填地址参数
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("无效的地址")
	}
	return common.HexToAddress(s), nil
}

// parseOptionalAddress 解析可选地址参数，空串返回零地址
func parseOptionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(s)
}

// parseAmount 解析必填金额参数（十进制字符串）
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("金额不能为空")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("无效的金额")
	}
	return v, nil
}

// parseOptionalAmount 解析可选金额参数，空串按零处理
func parseOptionalAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	return parseAmount(s)
}
