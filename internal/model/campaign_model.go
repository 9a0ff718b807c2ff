package model

import (
	"time"
)

// CampaignModel 众筹活动。时间参数在创建时固定，
// 账本字段（托管余额、费用累计、终结标记）在每次动作后回写。
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address        string `json:"address" gorm:"uniqueIndex;not null"` // 托管账户地址
	CreatorAddress string `json:"creator_address" gorm:"not null"`
	FeeRecipient   string `json:"fee_recipient" gorm:"not null"`
	AdminAddress   string `json:"admin_address"`
	ChainId        int64  `json:"chain_id" gorm:"not null"`

	Goal            string    `json:"goal" gorm:"not null"` // 目标金额（十进制字符串）
	StartTime       time.Time `json:"start_time" gorm:"not null"`
	EndTime         time.Time `json:"end_time" gorm:"not null"`
	ClaimWindowSec  int64     `json:"claim_window_sec" gorm:"not null"`
	RefundWindowSec int64     `json:"refund_window_sec" gorm:"not null"`

	// 账本状态
	TerminalStatus  string `json:"terminal_status" gorm:"default:'active'"` // active, cancelled, claimed
	Status          string `json:"status" gorm:"default:'active'"`          // 派生状态镜像，由定时任务刷新
	Custody         string `json:"custody" gorm:"default:'0'"`
	ContributorFees string `json:"contributor_fees" gorm:"default:'0'"`
	CreatorFees     string `json:"creator_fees" gorm:"default:'0'"`
}

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
