package notifier

import (
	"sync"

	"github.com/blues/fundlock/internal/escrow"
	"github.com/blues/fundlock/internal/logger"
	"github.com/blues/fundlock/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// Subscriber 事件订阅回调
type Subscriber func(campaignId int64, ev escrow.Event)

// Dispatcher 事件分发器：先落库，再通过协程池异步推送给订阅者。
// 落库失败只记日志，不阻塞资金操作。
type Dispatcher struct {
	db   *gorm.DB
	pool *ants.Pool

	mu          sync.RWMutex
	subscribers []Subscriber
}

// New 创建事件分发器
func New(db *gorm.DB, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{db: db, pool: pool}, nil
}

// Subscribe 注册订阅者
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

// NotifierFor 返回绑定某活动的通知回调，供状态机使用
func (d *Dispatcher) NotifierFor(campaignId int64) escrow.Notifier {
	return func(ev escrow.Event) {
		d.publish(campaignId, ev)
	}
}

// publish 持久化事件并异步分发
func (d *Dispatcher) publish(campaignId int64, ev escrow.Event) {
	record := &model.EventModel{
		CampaignId: campaignId,
		EventType:  string(ev.Type),
		OccurredAt: ev.At,
	}
	if ev.Contributor != (common.Address{}) {
		record.Address = ev.Contributor.Hex()
	}
	if ev.Recipient != (common.Address{}) {
		record.Recipient = ev.Recipient.Hex()
	}
	if ev.Amount != nil {
		record.Amount = ev.Amount.String()
	}
	if ev.CreatorFee != nil {
		record.CreatorFee = ev.CreatorFee.String()
	}
	if ev.ContributorFee != nil {
		record.ContributorFee = ev.ContributorFee.String()
	}
	if err := d.db.Create(record).Error; err != nil {
		logger.Error("持久化事件失败: campaign=%d type=%s err=%v", campaignId, ev.Type, err)
	}

	d.mu.RLock()
	subs := make([]Subscriber, len(d.subscribers))
	copy(subs, d.subscribers)
	d.mu.RUnlock()

	for _, sub := range subs {
		sub := sub
		if err := d.pool.Submit(func() { sub(campaignId, ev) }); err != nil {
			logger.Error("提交事件分发任务失败: %v", err)
		}
	}
}

// Close 关闭协程池
func (d *Dispatcher) Close() {
	d.pool.Release()
}
