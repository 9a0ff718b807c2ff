package logic

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blues/fundlock/internal/config"
	"github.com/blues/fundlock/internal/escrow"
	"github.com/blues/fundlock/internal/logger"
	"github.com/blues/fundlock/internal/model"
	"github.com/blues/fundlock/internal/notifier"
	"github.com/blues/fundlock/internal/treasury"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"
)

// ErrCampaignNotFound 活动不存在
var ErrCampaignNotFound = errors.New("活动不存在")

// CampaignLogic 活动业务逻辑。内存中的状态机是唯一事实来源，
// 每次动作成功后把账本快照回写数据库，重启时从数据库重建。
type CampaignLogic struct {
	db         *gorm.DB
	treasury   *treasury.Treasury
	dispatcher *notifier.Dispatcher
	forwarder  treasury.SettlementForwarder
	platform   config.PlatformConfig

	mu        sync.RWMutex
	campaigns map[int64]*escrow.Campaign
}

// NewCampaignLogic 创建活动业务逻辑，forwarder 可为 nil（委托结算只在库内记账）
func NewCampaignLogic(db *gorm.DB, t *treasury.Treasury, d *notifier.Dispatcher, forwarder treasury.SettlementForwarder, platform config.PlatformConfig) *CampaignLogic {
	return &CampaignLogic{
		db:         db,
		treasury:   t,
		dispatcher: d,
		forwarder:  forwarder,
		platform:   platform,
		campaigns:  make(map[int64]*escrow.Campaign),
	}
}

// CreateCampaignInput 创建活动的入参
type CreateCampaignInput struct {
	Creator      common.Address
	FeeRecipient common.Address // 为空时使用平台默认费用接收方
	Admin        common.Address // 为空时使用平台管理员
	Goal         *big.Int
	Duration     time.Duration
	ClaimWindow  time.Duration
	RefundWindow time.Duration
}

// CreateCampaign 创建活动：先落库拿到ID，再派生托管地址并构建状态机。
// 参数校验失败时整个事务回滚。
func (l *CampaignLogic) CreateCampaign(in CreateCampaignInput) (*model.CampaignModel, error) {
	feeRecipient := in.FeeRecipient
	if feeRecipient == (common.Address{}) {
		feeRecipient = common.HexToAddress(l.platform.FeeRecipient)
	}
	admin := in.Admin
	if admin == (common.Address{}) {
		admin = common.HexToAddress(l.platform.AdminAddress)
	}

	now := time.Now()
	row := &model.CampaignModel{
		CreatorAddress:  in.Creator.Hex(),
		FeeRecipient:    feeRecipient.Hex(),
		AdminAddress:    admin.Hex(),
		ChainId:         l.platform.ChainId,
		Goal:            valueString(in.Goal),
		StartTime:       now,
		EndTime:         now.Add(in.Duration),
		ClaimWindowSec:  int64(in.ClaimWindow / time.Second),
		RefundWindowSec: int64(in.RefundWindow / time.Second),
		TerminalStatus:  string(escrow.StatusActive),
		Status:          string(escrow.StatusActive),
		Custody:         "0",
		ContributorFees: "0",
		CreatorFees:     "0",
	}

	var engine *escrow.Campaign
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("创建活动失败: %w", err)
		}

		address := campaignAddress(in.Creator, row.Id)
		cfg := escrow.Config{
			Params: escrow.Params{
				Address:      address,
				ChainID:      big.NewInt(l.platform.ChainId),
				Creator:      in.Creator,
				FeeRecipient: feeRecipient,
				Admin:        admin,
				Goal:         in.Goal,
				Duration:     in.Duration,
				ClaimWindow:  in.ClaimWindow,
				RefundWindow: in.RefundWindow,
			},
			Oracle:   escrow.ThresholdOracle{},
			Vault:    l.treasury.VaultFor(row.Id, address, l.forwarder),
			Notifier: l.dispatcher.NotifierFor(row.Id),
			StartAt:  now,
		}
		c, err := escrow.New(cfg)
		if err != nil {
			return err
		}

		row.Address = address.Hex()
		row.EndTime = c.EndAt()
		if err := tx.Model(row).Updates(map[string]interface{}{
			"address":  row.Address,
			"end_time": row.EndTime,
		}).Error; err != nil {
			return fmt.Errorf("更新活动地址失败: %w", err)
		}
		engine = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.campaigns[row.Id] = engine
	l.mu.Unlock()

	logger.Info("活动创建成功: id=%d address=%s creator=%s", row.Id, row.Address, row.CreatorAddress)
	return row, nil
}

// LoadCampaigns 启动时从数据库重建所有活动状态机
func (l *CampaignLogic) LoadCampaigns() error {
	var rows []model.CampaignModel
	if err := l.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("加载活动列表失败: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		engine, err := l.rebuild(row)
		if err != nil {
			logger.Error("重建活动状态机失败: id=%d err=%v", row.Id, err)
			continue
		}
		l.mu.Lock()
		l.campaigns[row.Id] = engine
		l.mu.Unlock()
	}

	logger.Info("活动状态机加载完成: count=%d", len(rows))
	return nil
}

// rebuild 从活动行、净贡献行、授权序号行重建状态机
func (l *CampaignLogic) rebuild(row *model.CampaignModel) (*escrow.Campaign, error) {
	var contributions []model.ContributionModel
	if err := l.db.Where("campaign_id = ?", row.Id).Find(&contributions).Error; err != nil {
		return nil, fmt.Errorf("加载净贡献失败: %w", err)
	}
	var nonces []model.AuthorizationNonceModel
	if err := l.db.Where("campaign_id = ?", row.Id).Find(&nonces).Error; err != nil {
		return nil, fmt.Errorf("加载授权序号失败: %w", err)
	}

	address := common.HexToAddress(row.Address)
	cfg := escrow.Config{
		Params: escrow.Params{
			Address:      address,
			ChainID:      big.NewInt(row.ChainId),
			Creator:      common.HexToAddress(row.CreatorAddress),
			FeeRecipient: common.HexToAddress(row.FeeRecipient),
			Admin:        common.HexToAddress(row.AdminAddress),
			Goal:         parseValue(row.Goal),
			Duration:     row.EndTime.Sub(row.StartTime),
			ClaimWindow:  time.Duration(row.ClaimWindowSec) * time.Second,
			RefundWindow: time.Duration(row.RefundWindowSec) * time.Second,
		},
		Oracle:   escrow.ThresholdOracle{},
		Vault:    l.treasury.VaultFor(row.Id, address, l.forwarder),
		Notifier: l.dispatcher.NotifierFor(row.Id),
	}

	snap := escrow.Snapshot{
		StartAt:         row.StartTime,
		EndAt:           row.EndTime,
		Terminal:        escrow.Status(row.TerminalStatus),
		Custody:         parseValue(row.Custody),
		Contributions:   make(map[common.Address]*big.Int, len(contributions)),
		ContributorFees: parseValue(row.ContributorFees),
		CreatorFees:     parseValue(row.CreatorFees),
		Nonces:          make(map[common.Address]uint64, len(nonces)),
	}
	for _, c := range contributions {
		snap.Contributions[common.HexToAddress(c.Address)] = parseValue(c.Amount)
	}
	for _, n := range nonces {
		snap.Nonces[common.HexToAddress(n.Address)] = n.Nonce
	}

	return escrow.Restore(cfg, snap)
}

// engine 获取活动状态机
func (l *CampaignLogic) engine(id int64) (*escrow.Campaign, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

// Contribute 贡献资金并回写账本
func (l *CampaignLogic) Contribute(id int64, payer, beneficiary common.Address, amount, contributorFee, creatorFee *big.Int) error {
	c, err := l.engine(id)
	if err != nil {
		return err
	}
	if err := c.ContributeOnBehalf(payer, beneficiary, amount, contributorFee, creatorFee); err != nil {
		return err
	}
	l.persistState(id, c)

	record := &model.ContributeRecordModel{
		CampaignId:     id,
		PayerAddress:   payer.Hex(),
		Address:        beneficiary.Hex(),
		Amount:         valueString(amount),
		ContributorFee: valueString(contributorFee),
		CreatorFee:     valueString(creatorFee),
	}
	if err := l.db.Create(record).Error; err != nil {
		logger.Error("写入贡献流水失败: campaign=%d err=%v", id, err)
	}
	return nil
}

// Refund 退款并回写账本，返回实际退款金额
func (l *CampaignLogic) Refund(id int64, contributor common.Address, processingFee *big.Int) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	amount, err := c.Refund(contributor, processingFee)
	if err != nil {
		return nil, err
	}
	l.persistState(id, c)
	l.recordRefund(id, contributor, contributor, amount, processingFee, false)
	return amount, nil
}

// DelegatedRefund 凭委托授权退款，资金付给授权指定的结算目标
func (l *CampaignLogic) DelegatedRefund(id int64, a escrow.Authorization, sig, payload []byte) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	amount, err := c.DelegatedRefund(a, sig, payload)
	if err != nil {
		return nil, err
	}
	l.persistState(id, c)
	l.recordRefund(id, a.Beneficiary, a.SettlementTarget, amount, a.ProcessingFee, true)
	return amount, nil
}

// Claim 创建者提取，返回支付给创建者的金额
func (l *CampaignLogic) Claim(id int64, caller common.Address, processingFee *big.Int) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	payout, err := c.Claim(caller, processingFee)
	if err != nil {
		return nil, err
	}
	l.persistState(id, c)
	return payout, nil
}

// DelegatedClaim 凭委托授权提取，资金付给授权指定的结算目标
func (l *CampaignLogic) DelegatedClaim(id int64, a escrow.Authorization, sig, payload []byte) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	payout, err := c.DelegatedClaim(a, sig, payload)
	if err != nil {
		return nil, err
	}
	l.persistState(id, c)
	return payout, nil
}

// Cancel 取消活动
func (l *CampaignLogic) Cancel(id int64, caller common.Address) error {
	c, err := l.engine(id)
	if err != nil {
		return err
	}
	if err := c.Cancel(caller); err != nil {
		return err
	}
	l.persistState(id, c)
	return nil
}

// Swipe 回收过期活动的剩余资金到平台兜底地址
func (l *CampaignLogic) Swipe(id int64) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	recipient := common.HexToAddress(l.platform.RecoveryAddress)
	amount, err := c.Swipe(recipient)
	if err != nil {
		return nil, err
	}
	l.persistState(id, c)
	return amount, nil
}

// PreviewRefund 查询可退金额，不变更状态
func (l *CampaignLogic) PreviewRefund(id int64, contributor common.Address, processingFee *big.Int) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	return c.PreviewRefund(contributor, processingFee)
}

// PreviewClaim 查询可提取金额，不变更状态
func (l *CampaignLogic) PreviewClaim(id int64, caller common.Address, processingFee *big.Int) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	return c.PreviewClaim(caller, processingFee)
}

// Status 查询活动当前派生状态
func (l *CampaignLogic) Status(id int64) (escrow.Status, error) {
	c, err := l.engine(id)
	if err != nil {
		return "", err
	}
	return c.Status(), nil
}

// Nonce 查询某身份下一个可用的授权序号
func (l *CampaignLogic) Nonce(id int64, addr common.Address) (uint64, error) {
	c, err := l.engine(id)
	if err != nil {
		return 0, err
	}
	return c.Nonce(addr), nil
}

// ContributionOf 查询某贡献者当前净贡献额
func (l *CampaignLogic) ContributionOf(id int64, contributor common.Address) (*big.Int, error) {
	c, err := l.engine(id)
	if err != nil {
		return nil, err
	}
	return c.ContributionOf(contributor), nil
}

// GetCampaign 获取活动详情（含实时派生状态）
func (l *CampaignLogic) GetCampaign(id int64) (*model.CampaignModel, error) {
	var row model.CampaignModel
	if err := l.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("获取活动详情失败: %w", err)
	}
	if c, err := l.engine(id); err == nil {
		row.Status = string(c.Status())
	}
	return &row, nil
}

// GetCampaigns 分页获取活动列表，支持按状态和创建者过滤
func (l *CampaignLogic) GetCampaigns(status, creator string, page, pageSize int) ([]model.CampaignModel, int64, error) {
	query := l.db.Model(&model.CampaignModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if creator != "" {
		query = query.Where("creator_address = ?", common.HexToAddress(creator).Hex())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计活动数量失败: %w", err)
	}

	var rows []model.CampaignModel
	if err := query.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取活动列表失败: %w", err)
	}
	return rows, total, nil
}

// SyncStatuses 把派生状态刷新到数据库镜像列，供定时任务调用
func (l *CampaignLogic) SyncStatuses() {
	l.mu.RLock()
	engines := make(map[int64]*escrow.Campaign, len(l.campaigns))
	for id, c := range l.campaigns {
		engines[id] = c
	}
	l.mu.RUnlock()

	for id, c := range engines {
		status := string(c.Status())
		err := l.db.Model(&model.CampaignModel{}).
			Where("id = ? AND status <> ?", id, status).
			Update("status", status).Error
		if err != nil {
			logger.Error("刷新活动状态失败: id=%d err=%v", id, err)
		}
	}
}

// SweepExpired 回收所有两个窗口都已过期且仍有托管余额的活动
func (l *CampaignLogic) SweepExpired() {
	if l.platform.RecoveryAddress == "" {
		return
	}

	l.mu.RLock()
	ids := make([]int64, 0, len(l.campaigns))
	for id := range l.campaigns {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	for _, id := range ids {
		amount, err := l.Swipe(id)
		if err != nil {
			// 未到期或已清零的活动跳过
			if errors.Is(err, escrow.ErrWindowNotElapsed) || errors.Is(err, escrow.ErrCampaignFinalized) {
				continue
			}
			logger.Error("回收过期活动失败: id=%d err=%v", id, err)
			continue
		}
		logger.Info("过期活动已回收: id=%d amount=%s", id, amount.String())
	}
}

// persistState 把状态机快照回写数据库。
// 回写失败只记日志，重启后以数据库为准重建。
func (l *CampaignLogic) persistState(id int64, c *escrow.Campaign) {
	snap := c.Snapshot()
	status := string(c.Status())

	err := l.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"terminal_status":  string(snap.Terminal),
			"status":           status,
			"custody":          snap.Custody.String(),
			"contributor_fees": snap.ContributorFees.String(),
			"creator_fees":     snap.CreatorFees.String(),
		}
		if err := tx.Model(&model.CampaignModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("campaign_id = ?", id).Delete(&model.ContributionModel{}).Error; err != nil {
			return err
		}
		for addr, amount := range snap.Contributions {
			row := &model.ContributionModel{CampaignId: id, Address: addr.Hex(), Amount: amount.String()}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("campaign_id = ?", id).Delete(&model.AuthorizationNonceModel{}).Error; err != nil {
			return err
		}
		for addr, nonce := range snap.Nonces {
			row := &model.AuthorizationNonceModel{CampaignId: id, Address: addr.Hex(), Nonce: nonce}
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("回写活动账本失败: id=%d err=%v", id, err)
	}
}

// recordRefund 写退款流水
func (l *CampaignLogic) recordRefund(id int64, contributor, recipient common.Address, amount, processingFee *big.Int, delegated bool) {
	record := &model.RefundRecordModel{
		CampaignId:       id,
		Address:          contributor.Hex(),
		RecipientAddress: recipient.Hex(),
		Amount:           valueString(amount),
		ProcessingFee:    valueString(processingFee),
		Delegated:        delegated,
	}
	if err := l.db.Create(record).Error; err != nil {
		logger.Error("写入退款流水失败: campaign=%d err=%v", id, err)
	}
}

// campaignAddress 由创建者地址与活动ID派生确定性的托管账户地址
func campaignAddress(creator common.Address, id int64) common.Address {
	idBytes := common.LeftPadBytes(new(big.Int).SetInt64(id).Bytes(), 32)
	hash := crypto.Keccak256(creator.Bytes(), idBytes)
	return common.BytesToAddress(hash[12:])
}

// parseValue 十进制字符串转大整数，空串按零处理
func parseValue(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// valueString 大整数转十进制字符串，nil 按零处理
func valueString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
