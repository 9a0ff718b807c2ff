package model

import (
	"time"
)

// ContributeRecordModel 贡献流水（只追加）
type ContributeRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId     int64  `json:"campaign_id" gorm:"not null;index"`
	PayerAddress   string `json:"payer_address" gorm:"not null"` // 出资方
	Address        string `json:"address" gorm:"not null"`       // 受益人
	Amount         string `json:"amount" gorm:"not null"`        // 毛额
	ContributorFee string `json:"contributor_fee" gorm:"default:'0'"`
	CreatorFee     string `json:"creator_fee" gorm:"default:'0'"`
}

// TableName 自定义表名
func (ContributeRecordModel) TableName() string {
	return "contribute_record"
}
