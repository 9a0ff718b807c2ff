package model

import (
	"time"
)

// AccountModel 库内资金账户，活动托管账户与外部参与方共用一张表
type AccountModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address string `json:"address" gorm:"uniqueIndex;not null"`
	Balance string `json:"balance" gorm:"not null;default:'0'"`
}

// TableName 自定义表名
func (AccountModel) TableName() string {
	return "account"
}
