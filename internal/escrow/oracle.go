package escrow

import "math/big"

// GoalOracle 目标达成断言，在活动创建时注入，只读不持有。
// 入参为合格余额（托管余额减去贡献者手续费累计）与目标金额。
type GoalOracle interface {
	IsGoalReached(qualifying, goal *big.Int) bool
}

// ThresholdOracle 默认的阈值断言：合格余额达到目标即视为达成
type ThresholdOracle struct{}

// IsGoalReached 判断目标是否达成
func (ThresholdOracle) IsGoalReached(qualifying, goal *big.Int) bool {
	if qualifying == nil || goal == nil {
		return false
	}
	return qualifying.Cmp(goal) >= 0
}
