package escrow

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// 贡献与费用账本。只做内存账务变更，从不移动资金。
// 所有方法都要求调用方持有 c.mu。

// recordContribution 记账一笔贡献：净额计入贡献者，
// 两项费用分别累计，托管余额增加 gross + creatorFee。
// 入账模型保证 sum(contributions) + contributorFees + creatorFees == custody。
func (c *Campaign) recordContribution(contributor common.Address, gross, contributorFee, creatorFee *big.Int) {
	net := new(big.Int).Sub(gross, contributorFee)

	cur, ok := c.contributions[contributor]
	if !ok {
		cur = new(big.Int)
		c.contributions[contributor] = cur
	}
	cur.Add(cur, net)

	c.contributorFees.Add(c.contributorFees, contributorFee)
	c.creatorFees.Add(c.creatorFees, creatorFee)
	c.custody.Add(c.custody, new(big.Int).Add(gross, creatorFee))
}

// clearContribution 清零某贡献者的记录，返回清零前的数额
func (c *Campaign) clearContribution(contributor common.Address) *big.Int {
	recorded := new(big.Int).Set(c.contribution(contributor))
	delete(c.contributions, contributor)
	return recorded
}

// clearAllContributions 清空全部贡献记录（提取或回收之后使用）
func (c *Campaign) clearAllContributions() {
	c.contributions = make(map[common.Address]*big.Int)
}

// contribution 返回某贡献者的当前记录，没有记录时返回零值
func (c *Campaign) contribution(contributor common.Address) *big.Int {
	if cur, ok := c.contributions[contributor]; ok {
		return cur
	}
	return new(big.Int)
}

// qualifyingBalance 合格余额 = 托管余额 − 贡献者手续费累计。
// 目标断言比较的就是这个值，贡献者手续费永远不计入目标。
func (c *Campaign) qualifyingBalance() *big.Int {
	return new(big.Int).Sub(c.custody, c.contributorFees)
}

// claimableBalance 可提取余额 = 托管余额 − 两项费用累计
func (c *Campaign) claimableBalance() *big.Int {
	out := new(big.Int).Sub(c.custody, c.contributorFees)
	return out.Sub(out, c.creatorFees)
}

// QualifyingBalance 返回合格余额
func (c *Campaign) QualifyingBalance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qualifyingBalance()
}

// ClaimableBalance 返回可提取余额
func (c *Campaign) ClaimableBalance() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimableBalance()
}
