package escrow

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// 动作处理器。统一的提交顺序：校验 -> 账本变更 -> 外部划转 -> 通知。
// 每个动作从校验到划转完成都持有 actionMu，同一活动上的动作不会
// 交错；账本变更总是先于外部划转提交，嵌套进入的调用只能观察到
// 变更后的状态；划转失败时整笔回滚，动作如同从未执行。

// Contribute 贡献资金。入账金额为 amount + creatorFee，
// 贡献者净额为 amount − contributorFee。
func (c *Campaign) Contribute(contributor common.Address, amount, contributorFee, creatorFee *big.Int) error {
	return c.ContributeOnBehalf(contributor, contributor, amount, contributorFee, creatorFee)
}

// ContributeOnBehalf 由付款方出资、受益人记账的贡献
func (c *Campaign) ContributeOnBehalf(payer, beneficiary common.Address, amount, contributorFee, creatorFee *big.Int) error {
	contributorFee = valueOrZero(contributorFee)
	creatorFee = valueOrZero(creatorFee)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	if err := c.validateContribute(amount, contributorFee, creatorFee, now); err != nil {
		c.mu.Unlock()
		return err
	}

	gross := new(big.Int).Set(amount)
	fee := new(big.Int).Set(contributorFee)
	cFee := new(big.Int).Set(creatorFee)
	c.recordContribution(beneficiary, gross, fee, cFee)
	c.mu.Unlock()

	deposit := new(big.Int).Add(gross, cFee)
	if err := c.vault.Deposit(payer, deposit); err != nil {
		c.mu.Lock()
		c.unrecordContribution(beneficiary, gross, fee, cFee)
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}

	c.emit(Event{
		Type:           EventContributionReceived,
		Contributor:    beneficiary,
		Amount:         new(big.Int).Sub(gross, fee),
		ContributorFee: fee,
		CreatorFee:     cFee,
		At:             now,
	})
	return nil
}

// validateContribute 贡献校验。调用方必须持有 c.mu。
func (c *Campaign) validateContribute(amount, contributorFee, creatorFee *big.Int, now time.Time) error {
	if now.After(c.endAt) {
		return ErrAfterDeadline
	}
	switch c.statusAt(now) {
	case StatusCancelled:
		return ErrCampaignCancelled
	case StatusClaimed:
		return ErrCampaignClaimed
	case StatusFinalized:
		return ErrCampaignFinalized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if contributorFee.Sign() < 0 || creatorFee.Sign() < 0 {
		return ErrFeeExceedsAmount
	}
	if contributorFee.Cmp(amount) >= 0 {
		return ErrFeeExceedsAmount
	}
	return nil
}

// unrecordContribution 贡献入账的回滚。调用方必须持有 c.mu。
func (c *Campaign) unrecordContribution(contributor common.Address, gross, contributorFee, creatorFee *big.Int) {
	net := new(big.Int).Sub(gross, contributorFee)
	if cur, ok := c.contributions[contributor]; ok {
		cur.Sub(cur, net)
		if cur.Sign() <= 0 {
			delete(c.contributions, contributor)
		}
	}
	c.contributorFees.Sub(c.contributorFees, contributorFee)
	c.creatorFees.Sub(c.creatorFees, creatorFee)
	c.custody.Sub(c.custody, new(big.Int).Add(gross, creatorFee))
}

// Refund 退还贡献者的记录金额减去处理费，处理费计入贡献者手续费累计。
// 返回实际退款金额。
func (c *Campaign) Refund(contributor common.Address, processingFee *big.Int) (*big.Int, error) {
	processingFee = valueOrZero(processingFee)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	amount, err := c.validateRefund(contributor, processingFee, now)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	fee := new(big.Int).Set(processingFee)
	recorded := c.clearContribution(contributor)
	c.contributorFees.Add(c.contributorFees, fee)
	c.custody.Sub(c.custody, amount)
	c.mu.Unlock()

	if err := c.vault.Transfer(contributor, amount); err != nil {
		c.mu.Lock()
		c.contributions[contributor] = recorded
		c.contributorFees.Sub(c.contributorFees, fee)
		c.custody.Add(c.custody, amount)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}

	c.emit(Event{
		Type:        EventContributionRefunded,
		Contributor: contributor,
		Recipient:   contributor,
		Amount:      amount,
		At:          now,
	})
	return amount, nil
}

// PreviewRefund 只做退款校验并返回可退金额，不变更任何状态
func (c *Campaign) PreviewRefund(contributor common.Address, processingFee *big.Int) (*big.Int, error) {
	processingFee = valueOrZero(processingFee)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateRefund(contributor, processingFee, c.now())
}

// validateRefund 退款校验，返回可退金额。调用方必须持有 c.mu。
func (c *Campaign) validateRefund(contributor common.Address, processingFee *big.Int, now time.Time) (*big.Int, error) {
	status := c.statusAt(now)
	if status == StatusClaimed {
		return nil, ErrCampaignClaimed
	}

	recorded := c.contribution(contributor)
	if recorded.Sign() == 0 {
		return nil, ErrZeroContribution
	}
	if processingFee.Sign() < 0 || processingFee.Cmp(recorded) > 0 {
		return nil, ErrProcessingFeeTooHigh
	}
	amount := new(big.Int).Sub(recorded, processingFee)

	switch status {
	case StatusCancelled, StatusFailed, StatusUnclaimed:
		// 已取消、已失败、无人提取：无条件允许退款
	default:
		if c.goalReached() {
			// 目标已达成且提取仍未过期：只有在退款后合格余额
			// 仍然满足目标时才放行，避免掏空创建者待提取的资金
			remaining := new(big.Int).Sub(c.qualifyingBalance(), recorded)
			if !c.oracle.IsGoalReached(remaining, c.params.Goal) {
				return nil, ErrRefundDuringClaimWindow
			}
		}
	}
	return amount, nil
}

// Claim 创建者在提取窗口内提取全部可提取余额。
// 处理费计入创建者费用累计，从创建者自己的所得中扣除。
// 返回支付给创建者的金额。
func (c *Campaign) Claim(caller common.Address, processingFee *big.Int) (*big.Int, error) {
	processingFee = valueOrZero(processingFee)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	payout, err := c.validateClaim(caller, processingFee, now)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	// 提交：终结标记与账本清空必须先于任何外部划转
	saved := c.takeLedger()
	c.terminal = terminalClaimed
	creatorFee := new(big.Int).Add(saved.creatorFees, processingFee)
	feePayout := new(big.Int).Add(saved.contributorFees, creatorFee)
	c.mu.Unlock()

	if err := c.payout(c.params.FeeRecipient, feePayout, c.params.Creator, payout); err != nil {
		c.mu.Lock()
		c.restoreLedger(saved)
		c.terminal = terminalNone
		c.mu.Unlock()
		return nil, err
	}

	c.emit(Event{
		Type:           EventClaimed,
		Recipient:      c.params.Creator,
		Amount:         payout,
		CreatorFee:     creatorFee,
		ContributorFee: saved.contributorFees,
		At:             now,
	})
	return payout, nil
}

// PreviewClaim 只做提取校验并返回可提取金额，不变更任何状态
func (c *Campaign) PreviewClaim(caller common.Address, processingFee *big.Int) (*big.Int, error) {
	processingFee = valueOrZero(processingFee)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateClaim(caller, processingFee, c.now())
}

// validateClaim 提取校验，返回创建者可得金额。调用方必须持有 c.mu。
func (c *Campaign) validateClaim(caller common.Address, processingFee *big.Int, now time.Time) (*big.Int, error) {
	if caller != c.params.Creator {
		return nil, ErrNotCreator
	}
	switch c.statusAt(now) {
	case StatusCancelled:
		return nil, ErrCampaignCancelled
	case StatusClaimed:
		return nil, ErrAlreadyClaimed
	case StatusFailed:
		return nil, ErrCampaignFailed
	case StatusUnclaimed:
		return nil, ErrClaimWindowExpired
	case StatusFinalized:
		return nil, ErrCampaignFinalized
	}
	// 提取只在 (截止时间, 截止时间+提取窗口] 内有效
	if !now.After(c.endAt) {
		return nil, ErrWindowNotElapsed
	}
	// 状态派生与这里各向断言查询一次，答案可能在两次查询之间
	// 翻转，此处独立把关
	if !c.goalReached() {
		return nil, ErrGoalNotReached
	}
	if processingFee.Sign() < 0 {
		return nil, ErrProcessingFeeTooHigh
	}
	payout := new(big.Int).Sub(c.claimableBalance(), processingFee)
	if payout.Sign() < 0 {
		return nil, ErrProcessingFeeTooHigh
	}
	return payout, nil
}

// Cancel 取消活动，只允许创建者或管理员执行
func (c *Campaign) Cancel(caller common.Address) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	if caller != c.params.Creator && (c.params.Admin == (common.Address{}) || caller != c.params.Admin) {
		c.mu.Unlock()
		return ErrUnauthorized
	}
	switch c.statusAt(now) {
	case StatusCancelled:
		c.mu.Unlock()
		return ErrAlreadyCancelled
	case StatusClaimed:
		c.mu.Unlock()
		return ErrAlreadyClaimed
	case StatusFinalized:
		c.mu.Unlock()
		return ErrCampaignFinalized
	}
	c.terminal = terminalCancelled
	c.mu.Unlock()

	c.emit(Event{Type: EventCancelled, At: now})
	return nil
}

// Swipe 两个窗口都过期之后的兜底回收路径。
// 无人提取的活动先把费用累计划给费用接收方，剩余部分给 recipient；
// 其余情况整个余额都给 recipient。返回划给 recipient 的金额。
func (c *Campaign) Swipe(recipient common.Address) (*big.Int, error) {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	deadline := c.endAt.Add(c.params.ClaimWindow + c.params.RefundWindow)
	if !now.After(deadline) {
		c.mu.Unlock()
		return nil, ErrWindowNotElapsed
	}
	if c.custody.Sign() == 0 {
		c.mu.Unlock()
		return nil, ErrCampaignFinalized
	}

	feeCut := new(big.Int)
	if c.statusAt(now) == StatusUnclaimed {
		feeCut.Add(c.contributorFees, c.creatorFees)
		if feeCut.Cmp(c.custody) > 0 {
			feeCut.Set(c.custody)
		}
	}
	remainder := new(big.Int).Sub(c.custody, feeCut)

	saved := c.takeLedger()
	c.mu.Unlock()

	if err := c.payout(c.params.FeeRecipient, feeCut, recipient, remainder); err != nil {
		c.mu.Lock()
		c.restoreLedger(saved)
		c.mu.Unlock()
		return nil, err
	}

	c.emit(Event{
		Type:           EventFundsSwiped,
		Recipient:      recipient,
		Amount:         remainder,
		CreatorFee:     saved.creatorFees,
		ContributorFee: saved.contributorFees,
		At:             now,
	})
	return remainder, nil
}

// ledgerState 出账动作的回滚快照
type ledgerState struct {
	custody         *big.Int
	contributions   map[common.Address]*big.Int
	contributorFees *big.Int
	creatorFees     *big.Int
}

// takeLedger 取走整个账本并清空，返回取走前的内容。
// 调用方必须持有 c.mu。
func (c *Campaign) takeLedger() ledgerState {
	saved := ledgerState{
		custody:         c.custody,
		contributions:   c.contributions,
		contributorFees: c.contributorFees,
		creatorFees:     c.creatorFees,
	}
	c.custody = new(big.Int)
	c.contributions = make(map[common.Address]*big.Int)
	c.contributorFees = new(big.Int)
	c.creatorFees = new(big.Int)
	return saved
}

// restoreLedger 恢复被取走的账本。调用方必须持有 c.mu。
func (c *Campaign) restoreLedger(saved ledgerState) {
	c.custody = saved.custody
	c.contributions = saved.contributions
	c.contributorFees = saved.contributorFees
	c.creatorFees = saved.creatorFees
}

// payout 固定顺序出账：先费用接收方，后主受益方，零额跳过
func (c *Campaign) payout(feeTo common.Address, feeAmount *big.Int, to common.Address, amount *big.Int) error {
	if feeAmount.Sign() > 0 {
		if err := c.vault.Transfer(feeTo, feeAmount); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
		}
	}
	if amount.Sign() > 0 {
		if err := c.vault.Transfer(to, amount); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
		}
	}
	return nil
}

// valueOrZero nil 金额按零值处理
func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
