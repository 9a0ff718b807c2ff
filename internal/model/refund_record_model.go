package model

import (
	"time"
)

// RefundRecordModel 退款流水（只追加）
type RefundRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId       int64  `json:"campaign_id" gorm:"not null;index"`
	Address          string `json:"address" gorm:"not null"`           // 贡献者
	RecipientAddress string `json:"recipient_address" gorm:"not null"` // 实际收款方
	Amount           string `json:"amount" gorm:"not null"`
	ProcessingFee    string `json:"processing_fee" gorm:"default:'0'"`
	Delegated        bool   `json:"delegated" gorm:"default:false"` // 是否走委托授权路径
}

// TableName 自定义表名
func (RefundRecordModel) TableName() string {
	return "refund_record"
}
