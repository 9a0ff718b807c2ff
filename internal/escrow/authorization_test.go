package escrow_test

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blues/fundlock/internal/escrow"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var settlementTarget = common.HexToAddress("0x5000000000000000000000000000000000000001")

type keyedEnv struct {
	*testEnv
	creatorKey     *ecdsa.PrivateKey
	creator        common.Address
	contributorKey *ecdsa.PrivateKey
	contributor    common.Address
}

// newKeyedEnv 构造带真实密钥身份的活动环境，用于委托授权路径
func newKeyedEnv(t *testing.T, goal int64) *keyedEnv {
	t.Helper()

	creatorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	contributorKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := &keyedEnv{
		testEnv: &testEnv{
			vault: &fakeVault{},
			start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		creatorKey:     creatorKey,
		creator:        crypto.PubkeyToAddress(creatorKey.PublicKey),
		contributorKey: contributorKey,
		contributor:    crypto.PubkeyToAddress(contributorKey.PublicKey),
	}
	env.clock = &fakeClock{now: env.start}

	campaign, err := escrow.New(escrow.Config{
		Params: escrow.Params{
			Address:      campaignAddr,
			ChainID:      big.NewInt(31337),
			Creator:      env.creator,
			FeeRecipient: feeRecipientAddr,
			Goal:         big.NewInt(goal),
			Duration:     30 * day,
			ClaimWindow:  7 * day,
			RefundWindow: 7 * day,
		},
		Oracle: escrow.ThresholdOracle{},
		Vault:  env.vault,
		Clock:  env.clock.Now,
	})
	require.NoError(t, err)
	env.campaign = campaign
	return env
}

// refundAuthorization 为当前状态构造一份有效的退款授权
func (e *keyedEnv) refundAuthorization(amount int64, payload []byte) escrow.Authorization {
	return escrow.Authorization{
		Beneficiary:      e.contributor,
		SettlementTarget: settlementTarget,
		Amount:           bi(amount),
		Nonce:            e.campaign.Nonce(e.contributor),
		Expiry:           e.clock.Now().Add(time.Hour),
		ProcessingFee:    bi(0),
		PayloadHash:      crypto.Keccak256Hash(payload),
	}
}

func TestDelegatedRefund(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign
	payload := []byte(`{"route":"lightning"}`)

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, payload)
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	amount, err := c.DelegatedRefund(auth, sig, payload)
	require.NoError(t, err)
	assert.Zero(t, amount.Cmp(bi(6)))

	// 出账走结算目标而不是受益人，携带原始结算参数
	require.Len(t, env.vault.calls, 2)
	last := env.vault.calls[1]
	assert.Equal(t, "invoke", last.kind)
	assert.Equal(t, settlementTarget, last.account)
	assert.Equal(t, payload, last.payload)

	assert.Zero(t, c.ContributionOf(env.contributor).Sign())
	assert.Equal(t, uint64(1), c.Nonce(env.contributor))

	// 同一签名重放被拒绝：序号已被消费
	_, err = c.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)
}

func TestDelegatedRefundExpiry(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign
	payload := []byte("p")

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, payload)
	auth.Expiry = env.clock.Now().Add(-time.Minute)
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	_, err = c.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrAuthorizationExpired)
}

func TestDelegatedRefundWrongSigner(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign
	payload := []byte("p")

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, payload)
	sig, err := c.SignAuthorization(auth, env.creatorKey)
	require.NoError(t, err)

	_, err = c.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)
}

func TestDelegatedRefundTamperedPayload(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, []byte("original"))
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	_, err = c.DelegatedRefund(auth, sig, []byte("tampered"))
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)
}

func TestDelegatedRefundAmountMismatch(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign
	payload := []byte("p")

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	// 授权金额超过应付金额
	auth := env.refundAuthorization(7, payload)
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)
	_, err = c.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInsufficientQualifyingBalance)

	// 授权金额低于应付金额
	auth = env.refundAuthorization(5, payload)
	sig, err = c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)
	_, err = c.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)

	// 校验失败不消费序号
	assert.Equal(t, uint64(0), c.Nonce(env.contributor))
}

// 跨活动重放：同一份授权在另一个活动实例上无效
func TestDelegatedRefundCrossCampaignReplay(t *testing.T) {
	env := newKeyedEnv(t, 100)
	payload := []byte("p")

	other, err := escrow.New(escrow.Config{
		Params: escrow.Params{
			Address:      common.HexToAddress("0x4000000000000000000000000000000000000002"),
			ChainID:      big.NewInt(31337),
			Creator:      env.creator,
			FeeRecipient: feeRecipientAddr,
			Goal:         bi(100),
			Duration:     30 * day,
			ClaimWindow:  7 * day,
			RefundWindow: 7 * day,
		},
		Oracle: escrow.ThresholdOracle{},
		Vault:  env.vault,
		Clock:  env.clock.Now,
	})
	require.NoError(t, err)

	require.NoError(t, env.campaign.Contribute(env.contributor, bi(6), nil, nil))
	require.NoError(t, other.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, payload)
	sig, err := env.campaign.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	// 域隔离使恢复出的签名者与受益人不一致
	_, err = other.DelegatedRefund(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)

	_, err = env.campaign.DelegatedRefund(auth, sig, payload)
	assert.NoError(t, err)
}

func TestDelegatedClaim(t *testing.T) {
	env := newKeyedEnv(t, 10)
	c := env.campaign
	payload := []byte(`{"bridge":"sidechain"}`)

	require.NoError(t, c.Contribute(env.contributor, bi(12), bi(1), bi(1)))
	env.atDay(31)

	auth := escrow.Authorization{
		Beneficiary:      env.creator,
		SettlementTarget: settlementTarget,
		Amount:           bi(11), // 13 − 1 − 1
		Nonce:            c.Nonce(env.creator),
		Expiry:           env.clock.Now().Add(time.Hour),
		ProcessingFee:    bi(0),
		PayloadHash:      crypto.Keccak256Hash(payload),
	}
	sig, err := c.SignAuthorization(auth, env.creatorKey)
	require.NoError(t, err)

	payout, err := c.DelegatedClaim(auth, sig, payload)
	require.NoError(t, err)
	assert.Zero(t, payout.Cmp(bi(11)))
	assert.Equal(t, escrow.StatusClaimed, c.Status())

	// 费用先行，结算调用在后
	calls := env.vault.calls[1:]
	require.Len(t, calls, 2)
	assert.Equal(t, "transfer", calls[0].kind)
	assert.Equal(t, feeRecipientAddr, calls[0].account)
	assert.Zero(t, calls[0].amount.Cmp(bi(2)))
	assert.Equal(t, "invoke", calls[1].kind)
	assert.Equal(t, settlementTarget, calls[1].account)
}

func TestDelegatedClaimNotCreator(t *testing.T) {
	env := newKeyedEnv(t, 10)
	c := env.campaign
	payload := []byte("p")

	require.NoError(t, c.Contribute(env.contributor, bi(10), nil, nil))
	env.atDay(31)

	auth := escrow.Authorization{
		Beneficiary:      env.contributor,
		SettlementTarget: settlementTarget,
		Amount:           bi(10),
		Nonce:            c.Nonce(env.contributor),
		Expiry:           env.clock.Now().Add(time.Hour),
		PayloadHash:      crypto.Keccak256Hash(payload),
	}
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	_, err = c.DelegatedClaim(auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrNotCreator)
}

// 结算调用失败时序号与账本一并回滚，可以换一份授权重试
func TestDelegatedRefundInvokeFailureRollsBack(t *testing.T) {
	env := newKeyedEnv(t, 100)
	c := env.campaign
	payload := []byte("p")

	require.NoError(t, c.Contribute(env.contributor, bi(6), nil, nil))
	env.atDay(31)

	auth := env.refundAuthorization(6, payload)
	sig, err := c.SignAuthorization(auth, env.contributorKey)
	require.NoError(t, err)

	env.vault.failInvoke = errors.New("结算合约拒绝")
	_, err = c.DelegatedRefund(auth, sig, payload)
	require.ErrorIs(t, err, escrow.ErrFailedTransfer)

	assert.Equal(t, uint64(0), c.Nonce(env.contributor))
	assert.Zero(t, c.ContributionOf(env.contributor).Cmp(bi(6)))

	env.vault.failInvoke = nil
	_, err = c.DelegatedRefund(auth, sig, payload)
	require.NoError(t, err)
}

func TestRecoverAuthorizer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := crypto.Keccak256Hash([]byte("message"))

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	signer, err := escrow.RecoverAuthorizer(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	// 27/28 形式的恢复标识同样接受
	legacy := append(append([]byte{}, sig[:64]...), sig[64]+27)
	signer, err = escrow.RecoverAuthorizer(digest, legacy)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	_, err = escrow.RecoverAuthorizer(digest, sig[:10])
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)
}
