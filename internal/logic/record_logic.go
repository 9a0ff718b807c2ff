package logic

import (
	"fmt"

	"github.com/blues/fundlock/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
)

// RecordLogic 流水与事件查询
type RecordLogic struct {
	db *gorm.DB
}

// NewRecordLogic 创建流水查询逻辑
func NewRecordLogic(db *gorm.DB) *RecordLogic {
	return &RecordLogic{db: db}
}

// GetContributions 分页获取活动当前的净贡献列表
func (r *RecordLogic) GetContributions(campaignId int64, page, pageSize int) ([]model.ContributionModel, int64, error) {
	query := r.db.Model(&model.ContributionModel{}).Where("campaign_id = ?", campaignId)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计净贡献数量失败: %w", err)
	}

	var rows []model.ContributionModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取净贡献列表失败: %w", err)
	}
	return rows, total, nil
}

// GetContributeRecords 分页获取贡献流水，address 可选按受益人过滤
func (r *RecordLogic) GetContributeRecords(campaignId int64, address string, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	query := r.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", campaignId)
	if address != "" {
		query = query.Where("address = ?", common.HexToAddress(address).Hex())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计贡献流水失败: %w", err)
	}

	var rows []model.ContributeRecordModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取贡献流水失败: %w", err)
	}
	return rows, total, nil
}

// GetRefundRecords 分页获取退款流水
func (r *RecordLogic) GetRefundRecords(campaignId int64, page, pageSize int) ([]model.RefundRecordModel, int64, error) {
	query := r.db.Model(&model.RefundRecordModel{}).Where("campaign_id = ?", campaignId)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计退款流水失败: %w", err)
	}

	var rows []model.RefundRecordModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取退款流水失败: %w", err)
	}
	return rows, total, nil
}

// GetSettlementRecords 分页获取委托结算流水
func (r *RecordLogic) GetSettlementRecords(campaignId int64, page, pageSize int) ([]model.SettlementRecordModel, int64, error) {
	query := r.db.Model(&model.SettlementRecordModel{}).Where("campaign_id = ?", campaignId)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计结算流水失败: %w", err)
	}

	var rows []model.SettlementRecordModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取结算流水失败: %w", err)
	}
	return rows, total, nil
}

// GetEvents 分页获取活动事件，eventType 可选过滤
func (r *RecordLogic) GetEvents(campaignId int64, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	query := r.db.Model(&model.EventModel{}).Where("campaign_id = ?", campaignId)
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计事件数量失败: %w", err)
	}

	var rows []model.EventModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取事件列表失败: %w", err)
	}
	return rows, total, nil
}
