package logic_test

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/database"
	"github.com/blues/fundlock/internal/escrow"
	"github.com/blues/fundlock/internal/logic"
	"github.com/blues/fundlock/internal/model"
	"github.com/blues/fundlock/internal/notifier"
	"github.com/blues/fundlock/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	creatorAddr      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	feeRecipientAddr = common.HexToAddress("0x1000000000000000000000000000000000000002")
	adminAddr        = common.HexToAddress("0x1000000000000000000000000000000000000003")
	contributorAddr  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	recoveryAddr     = common.HexToAddress("0x3000000000000000000000000000000000000001")
	targetAddr       = common.HexToAddress("0x5000000000000000000000000000000000000001")
)

type logicEnv struct {
	db       *gorm.DB
	treasury *treasury.Treasury
	logic    *logic.CampaignLogic
	platform config.PlatformConfig
}

func newLogicEnv(t *testing.T) *logicEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "logic.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return attachLogic(t, db)
}

// attachLogic 在已有数据库上构建业务逻辑，模拟服务重启
func attachLogic(t *testing.T, db *gorm.DB) *logicEnv {
	t.Helper()

	platform := config.PlatformConfig{
		ChainId:         31337,
		AdminAddress:    adminAddr.Hex(),
		FeeRecipient:    feeRecipientAddr.Hex(),
		RecoveryAddress: recoveryAddr.Hex(),
		EventWorkers:    2,
	}
	dispatcher, err := notifier.New(db, platform.EventWorkers)
	require.NoError(t, err)
	t.Cleanup(dispatcher.Close)

	tr := treasury.New(db)
	return &logicEnv{
		db:       db,
		treasury: tr,
		logic:    logic.NewCampaignLogic(db, tr, dispatcher, nil, platform),
		platform: platform,
	}
}

func (env *logicEnv) createCampaign(t *testing.T, creator common.Address, goal int64) *model.CampaignModel {
	t.Helper()

	row, err := env.logic.CreateCampaign(logic.CreateCampaignInput{
		Creator:      creator,
		Goal:         big.NewInt(goal),
		Duration:     2 * time.Hour,
		ClaimWindow:  time.Hour,
		RefundWindow: time.Hour,
	})
	require.NoError(t, err)
	return row
}

func (env *logicEnv) fundAndContribute(t *testing.T, id int64, contributor common.Address, amount, contributorFee, creatorFee int64) {
	t.Helper()

	require.NoError(t, env.treasury.Credit(contributor, big.NewInt(amount+creatorFee)))
	require.NoError(t, env.logic.Contribute(id, contributor, contributor,
		big.NewInt(amount), big.NewInt(contributorFee), big.NewInt(creatorFee)))
}

func TestCreateCampaign(t *testing.T) {
	env := newLogicEnv(t)

	row := env.createCampaign(t, creatorAddr, 1000)
	assert.NotEmpty(t, row.Address)
	assert.NotEqual(t, (common.Address{}).Hex(), row.Address)
	assert.Equal(t, creatorAddr.Hex(), row.CreatorAddress)
	// 未指定时使用平台默认
	assert.Equal(t, feeRecipientAddr.Hex(), row.FeeRecipient)
	assert.Equal(t, adminAddr.Hex(), row.AdminAddress)
	assert.Equal(t, string(escrow.StatusActive), row.Status)
	assert.Equal(t, row.StartTime.Add(2*time.Hour), row.EndTime)

	// 同创建者的两个活动派生出不同的托管地址
	second := env.createCampaign(t, creatorAddr, 1000)
	assert.NotEqual(t, row.Address, second.Address)

	status, err := env.logic.Status(row.Id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusActive, status)
}

func TestCreateCampaignRejectsInvalidParams(t *testing.T) {
	env := newLogicEnv(t)

	_, err := env.logic.CreateCampaign(logic.CreateCampaignInput{
		Creator:      creatorAddr,
		Goal:         big.NewInt(0),
		Duration:     2 * time.Hour,
		ClaimWindow:  time.Hour,
		RefundWindow: time.Hour,
	})
	require.Error(t, err)

	// 事务回滚后不留半成品行
	var count int64
	require.NoError(t, env.db.Model(&model.CampaignModel{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestContributePersistsState(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)

	env.fundAndContribute(t, row.Id, contributorAddr, 200, 10, 5)

	// 账本列回写：托管 = 200 + 5
	var persisted model.CampaignModel
	require.NoError(t, env.db.First(&persisted, row.Id).Error)
	assert.Equal(t, "205", persisted.Custody)
	assert.Equal(t, "10", persisted.ContributorFees)
	assert.Equal(t, "5", persisted.CreatorFees)

	// 净贡献行：200 − 10
	var contribution model.ContributionModel
	require.NoError(t, env.db.Where("campaign_id = ?", row.Id).First(&contribution).Error)
	assert.Equal(t, contributorAddr.Hex(), contribution.Address)
	assert.Equal(t, "190", contribution.Amount)

	// 贡献流水与事件
	var recordCount, eventCount int64
	require.NoError(t, env.db.Model(&model.ContributeRecordModel{}).Where("campaign_id = ?", row.Id).Count(&recordCount).Error)
	assert.Equal(t, int64(1), recordCount)
	require.NoError(t, env.db.Model(&model.EventModel{}).Where("campaign_id = ? AND event_type = ?", row.Id, string(escrow.EventContributionReceived)).Count(&eventCount).Error)
	assert.Equal(t, int64(1), eventCount)

	// 托管账户实际收到入金
	custody, err := env.treasury.Balance(common.HexToAddress(row.Address))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(205), custody)
}

func TestContributeInsufficientFundsRollsBack(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)

	// 出资方没有入金，库内划转失败，账本必须回滚
	err := env.logic.Contribute(row.Id, contributorAddr, contributorAddr,
		big.NewInt(200), big.NewInt(0), big.NewInt(0))
	require.ErrorIs(t, err, escrow.ErrFailedTransfer)

	amount, err := env.logic.ContributionOf(row.Id, contributorAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Sign())
}

func TestRefund(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)
	env.fundAndContribute(t, row.Id, contributorAddr, 200, 10, 5)

	// 目标未达成，募集期内即可退款；处理费从退款中扣除
	amount, err := env.logic.Refund(row.Id, contributorAddr, big.NewInt(40))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150), amount)

	balance, err := env.treasury.Balance(contributorAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150), balance)

	var refund model.RefundRecordModel
	require.NoError(t, env.db.Where("campaign_id = ?", row.Id).First(&refund).Error)
	assert.Equal(t, contributorAddr.Hex(), refund.Address)
	assert.Equal(t, contributorAddr.Hex(), refund.RecipientAddress)
	assert.Equal(t, "150", refund.Amount)
	assert.False(t, refund.Delegated)

	// 净贡献行清除，处理费并入贡献者手续费累计
	var persisted model.CampaignModel
	require.NoError(t, env.db.First(&persisted, row.Id).Error)
	assert.Equal(t, "55", persisted.Custody)
	assert.Equal(t, "50", persisted.ContributorFees)
	var contributionCount int64
	require.NoError(t, env.db.Model(&model.ContributionModel{}).Where("campaign_id = ?", row.Id).Count(&contributionCount).Error)
	assert.Equal(t, int64(0), contributionCount)
}

func TestPreviewRefund(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)
	env.fundAndContribute(t, row.Id, contributorAddr, 200, 10, 5)

	amount, err := env.logic.PreviewRefund(row.Id, contributorAddr, big.NewInt(40))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150), amount)

	// 查询不变更状态
	recorded, err := env.logic.ContributionOf(row.Id, contributorAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(190), recorded)
}

func TestCancelPersistsTerminalStatus(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)

	// 平台管理员可以取消
	require.NoError(t, env.logic.Cancel(row.Id, adminAddr))

	var persisted model.CampaignModel
	require.NoError(t, env.db.First(&persisted, row.Id).Error)
	assert.Equal(t, string(escrow.StatusCancelled), persisted.TerminalStatus)
	assert.Equal(t, string(escrow.StatusCancelled), persisted.Status)

	// 取消后贡献被拒绝
	require.NoError(t, env.treasury.Credit(contributorAddr, big.NewInt(100)))
	err := env.logic.Contribute(row.Id, contributorAddr, contributorAddr,
		big.NewInt(100), big.NewInt(0), big.NewInt(0))
	assert.ErrorIs(t, err, escrow.ErrCampaignCancelled)
}

func TestCancelUnauthorized(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)

	err := env.logic.Cancel(row.Id, contributorAddr)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)
}

func TestCampaignNotFound(t *testing.T) {
	env := newLogicEnv(t)

	_, err := env.logic.Status(999)
	assert.ErrorIs(t, err, logic.ErrCampaignNotFound)

	err = env.logic.Contribute(999, contributorAddr, contributorAddr, big.NewInt(1), nil, nil)
	assert.ErrorIs(t, err, logic.ErrCampaignNotFound)
}

func TestLoadCampaignsRehydrates(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)
	env.fundAndContribute(t, row.Id, contributorAddr, 200, 10, 5)

	// 新的业务逻辑实例模拟重启，从数据库重建状态机
	restarted := attachLogic(t, env.db)
	require.NoError(t, restarted.logic.LoadCampaigns())

	recorded, err := restarted.logic.ContributionOf(row.Id, contributorAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(190), recorded)

	status, err := restarted.logic.Status(row.Id)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusActive, status)

	// 重建后的实例可以继续操作
	amount, err := restarted.logic.Refund(row.Id, contributorAddr, nil)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(190), amount)
}

func TestGetCampaignsFiltering(t *testing.T) {
	env := newLogicEnv(t)
	first := env.createCampaign(t, creatorAddr, 1000)
	env.createCampaign(t, contributorAddr, 500)
	require.NoError(t, env.logic.Cancel(first.Id, adminAddr))

	rows, total, err := env.logic.GetCampaigns("", "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	rows, total, err = env.logic.GetCampaigns(string(escrow.StatusCancelled), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, first.Id, rows[0].Id)

	rows, total, err = env.logic.GetCampaigns("", creatorAddr.Hex(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, creatorAddr.Hex(), rows[0].CreatorAddress)
}

// nullVault 只用于构造签名侧的活动克隆
type nullVault struct{}

func (nullVault) Deposit(common.Address, *big.Int) error        { return nil }
func (nullVault) Transfer(common.Address, *big.Int) error       { return nil }
func (nullVault) Invoke(common.Address, *big.Int, []byte) error { return nil }

func TestDelegatedRefund(t *testing.T) {
	env := newLogicEnv(t)

	contributorKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	contributor := crypto.PubkeyToAddress(contributorKey.PublicKey)

	row := env.createCampaign(t, creatorAddr, 1000)
	env.fundAndContribute(t, row.Id, contributor, 200, 10, 5)

	// 客户端侧用相同参数重建签名域
	signer, err := escrow.New(escrow.Config{
		Params: escrow.Params{
			Address:      common.HexToAddress(row.Address),
			ChainID:      big.NewInt(row.ChainId),
			Creator:      creatorAddr,
			FeeRecipient: feeRecipientAddr,
			Admin:        adminAddr,
			Goal:         big.NewInt(1000),
			Duration:     2 * time.Hour,
			ClaimWindow:  time.Hour,
			RefundWindow: time.Hour,
		},
		Oracle: escrow.ThresholdOracle{},
		Vault:  nullVault{},
	})
	require.NoError(t, err)

	payload := []byte{0x01, 0x02}
	auth := escrow.Authorization{
		Beneficiary:      contributor,
		SettlementTarget: targetAddr,
		Amount:           big.NewInt(190),
		Nonce:            0,
		Expiry:           time.Now().Add(time.Hour),
		ProcessingFee:    big.NewInt(0),
		PayloadHash:      escrow.PayloadHash(payload),
	}
	sig, err := signer.SignAuthorization(auth, contributorKey)
	require.NoError(t, err)

	amount, err := env.logic.DelegatedRefund(row.Id, auth, sig, payload)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(190), amount)

	// 资金付给结算目标而不是受益人
	balance, err := env.treasury.Balance(targetAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(190), balance)

	// 序号消费并持久化
	nonce, err := env.logic.Nonce(row.Id, contributor)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
	var nonceRow model.AuthorizationNonceModel
	require.NoError(t, env.db.Where("campaign_id = ? AND address = ?", row.Id, contributor.Hex()).First(&nonceRow).Error)
	assert.Equal(t, uint64(1), nonceRow.Nonce)

	// 委托退款留结算流水与退款流水
	var settlement model.SettlementRecordModel
	require.NoError(t, env.db.Where("campaign_id = ?", row.Id).First(&settlement).Error)
	assert.Equal(t, targetAddr.Hex(), settlement.TargetAddress)
	var refund model.RefundRecordModel
	require.NoError(t, env.db.Where("campaign_id = ?", row.Id).First(&refund).Error)
	assert.True(t, refund.Delegated)
	assert.Equal(t, targetAddr.Hex(), refund.RecipientAddress)

	// 同一授权重放被拒绝
	_, err = env.logic.DelegatedRefund(row.Id, auth, sig, payload)
	assert.ErrorIs(t, err, escrow.ErrInvalidAuthorization)
}

func TestSweepExpiredSkipsActiveCampaigns(t *testing.T) {
	env := newLogicEnv(t)
	row := env.createCampaign(t, creatorAddr, 1000)
	env.fundAndContribute(t, row.Id, contributorAddr, 200, 10, 5)

	// 窗口未过期，回收不应动账
	env.logic.SweepExpired()

	var persisted model.CampaignModel
	require.NoError(t, env.db.First(&persisted, row.Id).Error)
	assert.Equal(t, "205", persisted.Custody)
}
