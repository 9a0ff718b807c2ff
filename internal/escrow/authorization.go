package escrow

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// 委托授权子系统。受益人离线签署一份结构化授权，任何人都可以
// 代为提交，资金改付给授权中指定的结算目标。四个可独立验证的
// 步骤：规范化编码 -> 域隔离哈希 -> 签名恢复 -> 序号核对并消费。

const (
	signingName    = "FundlockCampaign"
	signingVersion = "1"
)

var (
	domainTypeHash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	authorizationTypeHash = crypto.Keccak256Hash([]byte(
		"SettlementAuthorization(address beneficiary,address settlementTarget,uint256 amount,uint256 nonce,uint256 expiry,uint256 processingFee,bytes32 payloadHash)"))
)

// Authorization 结构化的委托授权消息
type Authorization struct {
	Beneficiary      common.Address // 受益人，必须是签名者
	SettlementTarget common.Address // 结算目标，实际收款方
	Amount           *big.Int       // 授权金额，必须与校验得出的应付金额一致
	Nonce            uint64         // 重放保护序号
	Expiry           time.Time      // 授权有效期
	ProcessingFee    *big.Int       // 处理费
	PayloadHash      common.Hash    // 不透明结算参数的哈希
}

// PayloadHash 计算不透明结算参数的哈希，签名与验证两侧共用
func PayloadHash(payload []byte) common.Hash {
	return crypto.Keccak256Hash(payload)
}

// DomainSeparator 绑定到本活动实例的签名域，阻断跨活动重放
func (c *Campaign) DomainSeparator() common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(signingName)),
		crypto.Keccak256([]byte(signingVersion)),
		common.LeftPadBytes(c.params.ChainID.Bytes(), 32),
		common.LeftPadBytes(c.params.Address.Bytes(), 32),
	)
}

// AuthorizationDigest 计算待签名摘要：keccak256(0x19 0x01 ‖ 域 ‖ 结构哈希)
func (c *Campaign) AuthorizationDigest(a Authorization) common.Hash {
	structHash := crypto.Keccak256Hash(
		authorizationTypeHash.Bytes(),
		common.LeftPadBytes(a.Beneficiary.Bytes(), 32),
		common.LeftPadBytes(a.SettlementTarget.Bytes(), 32),
		common.LeftPadBytes(valueOrZero(a.Amount).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(a.Nonce).Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetInt64(a.Expiry.Unix()).Bytes(), 32),
		common.LeftPadBytes(valueOrZero(a.ProcessingFee).Bytes(), 32),
		a.PayloadHash.Bytes(),
	)
	domain := c.DomainSeparator()
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domain.Bytes(), structHash.Bytes())
}

// SignAuthorization 用私钥签署授权，供客户端与测试使用
func (c *Campaign) SignAuthorization(a Authorization, key *ecdsa.PrivateKey) ([]byte, error) {
	digest := c.AuthorizationDigest(a)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("签署授权失败: %w", err)
	}
	return sig, nil
}

// RecoverAuthorizer 从摘要与签名恢复签名者地址
func RecoverAuthorizer(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidAuthorization
	}
	// 兼容 27/28 形式的恢复标识
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append(append([]byte{}, sig[:crypto.RecoveryIDOffset]...), sig[crypto.RecoveryIDOffset]-27)
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrInvalidAuthorization
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// verifyAuthorization 按固定顺序验证授权，不消费序号。
// 调用方必须持有 c.mu。
func (c *Campaign) verifyAuthorization(a Authorization, sig, payload []byte, now time.Time) error {
	if now.After(a.Expiry) {
		return ErrAuthorizationExpired
	}
	if crypto.Keccak256Hash(payload) != a.PayloadHash {
		return ErrInvalidAuthorization
	}
	signer, err := RecoverAuthorizer(c.AuthorizationDigest(a), sig)
	if err != nil {
		return err
	}
	if signer != a.Beneficiary {
		return ErrInvalidAuthorization
	}
	if a.Nonce != c.nonces[a.Beneficiary] {
		return ErrInvalidAuthorization
	}
	return nil
}

// DelegatedRefund 凭受益人签署的授权执行退款，资金改付结算目标。
// 返回实际支付金额。
func (c *Campaign) DelegatedRefund(a Authorization, sig, payload []byte) (*big.Int, error) {
	fee := valueOrZero(a.ProcessingFee)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	if err := c.verifyAuthorization(a, sig, payload, now); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	amount, err := c.validateRefund(a.Beneficiary, fee, now)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := matchAuthorizedAmount(a.Amount, amount); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	// 提交：消费序号与账务变更先于外部划转
	c.nonces[a.Beneficiary]++
	feeAmount := new(big.Int).Set(fee)
	recorded := c.clearContribution(a.Beneficiary)
	c.contributorFees.Add(c.contributorFees, feeAmount)
	c.custody.Sub(c.custody, amount)
	c.mu.Unlock()

	if err := c.vault.Invoke(a.SettlementTarget, amount, payload); err != nil {
		c.mu.Lock()
		c.nonces[a.Beneficiary]--
		c.contributions[a.Beneficiary] = recorded
		c.contributorFees.Sub(c.contributorFees, feeAmount)
		c.custody.Add(c.custody, amount)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}

	c.emit(Event{
		Type:        EventContributionRefunded,
		Contributor: a.Beneficiary,
		Recipient:   a.SettlementTarget,
		Amount:      amount,
		At:          now,
	})
	return amount, nil
}

// DelegatedClaim 凭创建者签署的授权执行提取，资金改付结算目标。
// 返回实际支付金额。
func (c *Campaign) DelegatedClaim(a Authorization, sig, payload []byte) (*big.Int, error) {
	fee := valueOrZero(a.ProcessingFee)

	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	c.mu.Lock()
	now := c.now()
	if err := c.verifyAuthorization(a, sig, payload, now); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	payout, err := c.validateClaim(a.Beneficiary, fee, now)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := matchAuthorizedAmount(a.Amount, payout); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	c.nonces[a.Beneficiary]++
	saved := c.takeLedger()
	c.terminal = terminalClaimed
	creatorFee := new(big.Int).Add(saved.creatorFees, fee)
	feePayout := new(big.Int).Add(saved.contributorFees, creatorFee)
	c.mu.Unlock()

	if err := c.settle(a.SettlementTarget, payout, feePayout, payload); err != nil {
		c.mu.Lock()
		c.nonces[a.Beneficiary]--
		c.restoreLedger(saved)
		c.terminal = terminalNone
		c.mu.Unlock()
		return nil, err
	}

	c.emit(Event{
		Type:           EventClaimed,
		Recipient:      a.SettlementTarget,
		Amount:         payout,
		CreatorFee:     creatorFee,
		ContributorFee: saved.contributorFees,
		At:             now,
	})
	return payout, nil
}

// settle 委托提取的出账：费用接收方在前，结算目标调用在后
func (c *Campaign) settle(target common.Address, amount, feePayout *big.Int, payload []byte) error {
	if feePayout.Sign() > 0 {
		if err := c.vault.Transfer(c.params.FeeRecipient, feePayout); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
		}
	}
	if err := c.vault.Invoke(target, amount, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedTransfer, err)
	}
	return nil
}

// matchAuthorizedAmount 授权金额必须与校验得出的应付金额一致
func matchAuthorizedAmount(authorized, payable *big.Int) error {
	authorized = valueOrZero(authorized)
	if authorized.Cmp(payable) > 0 {
		return ErrInsufficientQualifyingBalance
	}
	if authorized.Cmp(payable) != 0 {
		return ErrInvalidAuthorization
	}
	return nil
}
