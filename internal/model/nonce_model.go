package model

import (
	"time"
)

// AuthorizationNonceModel 委托授权重放计数器，每个身份一条，单调递增
type AuthorizationNonceModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId int64  `json:"campaign_id" gorm:"not null;uniqueIndex:idx_campaign_signer"`
	Address    string `json:"address" gorm:"not null;uniqueIndex:idx_campaign_signer"`
	Nonce      uint64 `json:"nonce" gorm:"not null;default:0"`
}

// TableName 自定义表名
func (AuthorizationNonceModel) TableName() string {
	return "authorization_nonce"
}
