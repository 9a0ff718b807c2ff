package model

import (
	"time"
)

// EventModel 活动事件记录，供链下索引器消费
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignId     int64     `json:"campaign_id" gorm:"not null;index"`
	EventType      string    `json:"event_type" gorm:"not null"`
	Address        string    `json:"address"`         // 相关贡献者
	Recipient      string    `json:"recipient"`       // 相关收款方
	Amount         string    `json:"amount"`          // 事件金额
	CreatorFee     string    `json:"creator_fee"`     // 提取/回收事件的创建者费用拆分
	ContributorFee string    `json:"contributor_fee"` // 提取/回收事件的贡献者手续费拆分
	OccurredAt     time.Time `json:"occurred_at"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
