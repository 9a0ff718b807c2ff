package escrow

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MinDuration 活动持续时间下限
const MinDuration = time.Hour

// Params 活动的不可变参数，创建后不再修改
type Params struct {
	// Address 活动托管账户地址，同时作为委托授权的域隔离标识
	Address common.Address
	// ChainID 部署环境标识，参与签名域隔离
	ChainID *big.Int

	Creator      common.Address // 创建者
	FeeRecipient common.Address // 平台费用接收方
	Admin        common.Address // 管理员，可执行取消操作

	Goal         *big.Int      // 目标金额
	Duration     time.Duration // 募集持续时间
	ClaimWindow  time.Duration // 截止后创建者的提取窗口
	RefundWindow time.Duration // 提取窗口之后贡献者的退款窗口
}

// Config 创建活动所需的全部依赖
type Config struct {
	Params   Params
	Oracle   GoalOracle       // 目标达成断言
	Vault    Vault            // 资金划转执行器
	Notifier Notifier         // 可选，事件通知
	Clock    func() time.Time // 可选，默认 time.Now
	StartAt  time.Time        // 可选，默认创建时刻
}

// terminalState 持久化的终结标记，只会从 active 单向迁移
type terminalState uint8

const (
	terminalNone terminalState = iota
	terminalCancelled
	terminalClaimed
)

// Campaign 单个众筹活动的托管账本与状态机。
// actionMu 把每个资金动作连同其外部划转整体串行，并发进入的
// 动作依次排队；mu 只保护账本字段，查询方不会被在途划转阻塞。
// 内部状态先于任何外部划转提交，划转失败时整笔回滚。
type Campaign struct {
	actionMu sync.Mutex // 动作级串行锁，覆盖校验、账本变更与外部划转
	mu       sync.Mutex

	params Params
	oracle GoalOracle
	vault  Vault
	notify Notifier
	now    func() time.Time

	startAt time.Time
	endAt   time.Time

	terminal        terminalState
	custody         *big.Int                    // 托管余额
	contributions   map[common.Address]*big.Int // 贡献者 -> 净贡献额
	contributorFees *big.Int                    // 贡献者手续费累计
	creatorFees     *big.Int                    // 创建者费用累计
	nonces          map[common.Address]uint64   // 委托授权重放计数器
}

// New 创建活动实例，只能调用一次，参数校验失败直接拒绝
func New(cfg Config) (*Campaign, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Campaign{
		params:          cfg.Params,
		oracle:          cfg.Oracle,
		vault:           cfg.Vault,
		notify:          cfg.Notifier,
		now:             cfg.Clock,
		custody:         new(big.Int),
		contributions:   make(map[common.Address]*big.Int),
		contributorFees: new(big.Int),
		creatorFees:     new(big.Int),
		nonces:          make(map[common.Address]uint64),
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.startAt = cfg.StartAt
	if c.startAt.IsZero() {
		c.startAt = c.now()
	}
	c.endAt = c.startAt.Add(cfg.Params.Duration)

	return c, nil
}

// validateConfig 校验创建参数
func validateConfig(cfg Config) error {
	p := cfg.Params
	if p.Creator == (common.Address{}) {
		return errors.New("创建者地址不能为空")
	}
	if p.FeeRecipient == (common.Address{}) {
		return errors.New("费用接收方地址不能为空")
	}
	if p.Goal == nil || p.Goal.Sign() <= 0 {
		return errors.New("目标金额必须大于0")
	}
	if p.Duration < MinDuration {
		return errors.New("活动持续时间低于下限")
	}
	if p.ClaimWindow <= 0 {
		return errors.New("提取窗口必须大于0")
	}
	if p.RefundWindow <= 0 {
		return errors.New("退款窗口必须大于0")
	}
	if p.ChainID == nil || p.ChainID.Sign() <= 0 {
		return errors.New("链ID必须大于0")
	}
	if cfg.Oracle == nil {
		return errors.New("目标达成断言不能为空")
	}
	if cfg.Vault == nil {
		return errors.New("资金划转执行器不能为空")
	}
	return nil
}

// Params 返回活动的不可变参数
func (c *Campaign) Params() Params {
	return c.params
}

// StartAt 返回活动开始时间
func (c *Campaign) StartAt() time.Time {
	return c.startAt
}

// EndAt 返回募集截止时间
func (c *Campaign) EndAt() time.Time {
	return c.endAt
}

// Custody 返回当前托管余额
func (c *Campaign) Custody() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.custody)
}

// ContributionOf 返回某贡献者当前的净贡献额
func (c *Campaign) ContributionOf(contributor common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.contribution(contributor))
}

// FeeTotals 返回贡献者手续费与创建者费用的累计值
func (c *Campaign) FeeTotals() (contributorFees, creatorFees *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.contributorFees), new(big.Int).Set(c.creatorFees)
}

// Nonce 返回某身份下一个可用的授权序号
func (c *Campaign) Nonce(addr common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[addr]
}

// Snapshot 账本状态快照，供宿主持久化后通过 Restore 重建实例
type Snapshot struct {
	StartAt         time.Time
	EndAt           time.Time
	Terminal        Status // StatusActive / StatusCancelled / StatusClaimed
	Custody         *big.Int
	Contributions   map[common.Address]*big.Int
	ContributorFees *big.Int
	CreatorFees     *big.Int
	Nonces          map[common.Address]uint64
}

// Snapshot 导出当前账本状态
func (c *Campaign) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		StartAt:         c.startAt,
		EndAt:           c.endAt,
		Terminal:        StatusActive,
		Custody:         new(big.Int).Set(c.custody),
		Contributions:   make(map[common.Address]*big.Int, len(c.contributions)),
		ContributorFees: new(big.Int).Set(c.contributorFees),
		CreatorFees:     new(big.Int).Set(c.creatorFees),
		Nonces:          make(map[common.Address]uint64, len(c.nonces)),
	}
	switch c.terminal {
	case terminalCancelled:
		snap.Terminal = StatusCancelled
	case terminalClaimed:
		snap.Terminal = StatusClaimed
	}
	for addr, amount := range c.contributions {
		if amount.Sign() > 0 {
			snap.Contributions[addr] = new(big.Int).Set(amount)
		}
	}
	for addr, nonce := range c.nonces {
		snap.Nonces[addr] = nonce
	}
	return snap
}

// Restore 从快照重建活动实例，参数校验与 New 一致
func Restore(cfg Config, snap Snapshot) (*Campaign, error) {
	cfg.StartAt = snap.StartAt
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	if !snap.EndAt.IsZero() {
		c.endAt = snap.EndAt
	}
	switch snap.Terminal {
	case StatusCancelled:
		c.terminal = terminalCancelled
	case StatusClaimed:
		c.terminal = terminalClaimed
	}
	if snap.Custody != nil {
		c.custody.Set(snap.Custody)
	}
	if snap.ContributorFees != nil {
		c.contributorFees.Set(snap.ContributorFees)
	}
	if snap.CreatorFees != nil {
		c.creatorFees.Set(snap.CreatorFees)
	}
	for addr, amount := range snap.Contributions {
		c.contributions[addr] = new(big.Int).Set(amount)
	}
	for addr, nonce := range snap.Nonces {
		c.nonces[addr] = nonce
	}
	return c, nil
}

// emit 发出事件通知
func (c *Campaign) emit(ev Event) {
	if c.notify == nil {
		return
	}
	ev.Campaign = c.params.Address
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.notify(ev)
}
