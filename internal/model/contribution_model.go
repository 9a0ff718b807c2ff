package model

import (
	"time"
)

// ContributionModel 贡献者在某活动中的当前净贡献，
// 退款或提取后清零，是活动账本重建的依据。
type ContributionModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId int64  `json:"campaign_id" gorm:"not null;uniqueIndex:idx_campaign_contributor"`
	Address    string `json:"address" gorm:"not null;uniqueIndex:idx_campaign_contributor"`
	Amount     string `json:"amount" gorm:"not null"` // 当前净贡献额
}

// TableName 自定义表名
func (ContributionModel) TableName() string {
	return "contribution"
}
