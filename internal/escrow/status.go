package escrow

import "time"

// Status 活动状态。只有 cancelled 与 claimed 会被持久化，
// 其余状态都是时间、托管余额与目标断言的纯函数。
type Status string

const (
	StatusActive     Status = "active"     // 募集中
	StatusCancelled  Status = "cancelled"  // 已取消（终结标记）
	StatusClaimed    Status = "claimed"    // 已提取（终结标记）
	StatusSuccessful Status = "successful" // 目标已达成
	StatusFailed     Status = "failed"     // 截止后目标未达成
	StatusUnclaimed  Status = "unclaimed"  // 目标达成但创建者未在窗口内提取
	StatusFinalized  Status = "finalized"  // 两个窗口都已过且余额为零
)

// Status 返回当前派生状态，不产生任何副作用
func (c *Campaign) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusAt(c.now())
}

// statusAt 状态派生的唯一入口，严格按优先级求值，先匹配者生效。
// 终结标记优先于所有时间/目标派生状态：显式的取消或提取
// 永远不会被后算出的派生状态覆盖。调用方必须持有 c.mu。
func (c *Campaign) statusAt(now time.Time) Status {
	afterClaimWindow := now.After(c.endAt.Add(c.params.ClaimWindow))
	afterRefundWindow := now.After(c.endAt.Add(c.params.ClaimWindow + c.params.RefundWindow))

	// 1. 终结：余额为零且两个窗口都已过
	if c.custody.Sign() == 0 && afterRefundWindow {
		return StatusFinalized
	}
	// 2/3. 终结标记
	if c.terminal == terminalCancelled {
		return StatusCancelled
	}
	if c.terminal == terminalClaimed {
		return StatusClaimed
	}

	// 目标断言在一次求值中只查询一次
	goalReached := c.goalReached()

	// 4. 失败：已过截止且目标未达成
	if now.After(c.endAt) && !goalReached {
		return StatusFailed
	}
	// 5. 无人提取：提取窗口已过且目标已达成
	if afterClaimWindow && goalReached {
		return StatusUnclaimed
	}
	// 6. 成功：目标已达成
	if goalReached {
		return StatusSuccessful
	}
	// 7. 募集中
	return StatusActive
}

// goalReached 向断言查询目标是否达成。调用方必须持有 c.mu。
func (c *Campaign) goalReached() bool {
	return c.oracle.IsGoalReached(c.qualifyingBalance(), c.params.Goal)
}
