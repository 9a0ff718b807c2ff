package model

import (
	"time"
)

// SettlementRecordModel 委托结算流水：通过 Invoke 付给外部结算目标的出账
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId    int64  `json:"campaign_id" gorm:"not null;index"`
	TargetAddress string `json:"target_address" gorm:"not null"` // 结算目标
	Amount        string `json:"amount" gorm:"not null"`
	Payload       string `json:"payload" gorm:"type:text"`        // 不透明结算参数（hex）
	TxHash        string `json:"tx_hash"`                         // 转发上链后的交易哈希
	Status        string `json:"status" gorm:"default:'pending'"` // pending, success, failed
}

// SettlementStatus 结算状态
type SettlementStatus string

const (
	SettlementStatusPending SettlementStatus = "pending" // 待处理
	SettlementStatusSuccess SettlementStatus = "success" // 成功
	SettlementStatusFailed  SettlementStatus = "failed"  // 失败
)

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
