package escrow

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType 通知事件类型
type EventType string

const (
	EventContributionReceived EventType = "contribution_received" // 收到贡献
	EventContributionRefunded EventType = "contribution_refunded" // 贡献已退款
	EventClaimed              EventType = "claimed"               // 创建者已提取
	EventCancelled            EventType = "cancelled"             // 活动已取消
	EventFundsSwiped          EventType = "funds_swiped"          // 剩余资金已回收
)

// Event 状态机对外发出的通知，供链下索引器消费
type Event struct {
	Type        EventType      `json:"type"`
	Campaign    common.Address `json:"campaign"`
	Contributor common.Address `json:"contributor,omitempty"`
	Recipient   common.Address `json:"recipient,omitempty"`
	Amount      *big.Int       `json:"amount,omitempty"`

	// 提取事件携带的费用拆分
	CreatorFee     *big.Int `json:"creator_fee,omitempty"`
	ContributorFee *big.Int `json:"contributor_fee,omitempty"`

	At time.Time `json:"at"`
}

// Notifier 事件通知回调，在状态变更与划转都完成之后调用
type Notifier func(Event)
