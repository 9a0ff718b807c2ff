package treasury

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/blues/fundlock/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementForwarder 把委托结算出账转发到外部结算合约
type SettlementForwarder interface {
	ForwardSettlement(ctx context.Context, to common.Address, amount *big.Int, payload []byte) (common.Hash, error)
}

// Treasury 库内资金账户总账。活动托管账户与外部参与方账户
// 共用一张账户表，所有划转在单个数据库事务内完成。
type Treasury struct {
	db *gorm.DB
}

// New 创建资金总账
func New(db *gorm.DB) *Treasury {
	return &Treasury{db: db}
}

// Credit 给账户入金（充值入口，账户不存在时自动建立）
func (t *Treasury) Credit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("入金金额必须大于0")
	}
	return t.db.Transaction(func(tx *gorm.DB) error {
		return creditAccount(tx, addr, amount)
	})
}

// Balance 查询账户余额，账户不存在时返回零
func (t *Treasury) Balance(addr common.Address) (*big.Int, error) {
	var account model.AccountModel
	err := t.db.Where("address = ?", addr.Hex()).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询账户余额失败: %w", err)
	}
	return parseAmount(account.Balance), nil
}

// VaultFor 返回绑定到某活动托管账户的划转执行器
func (t *Treasury) VaultFor(campaignId int64, address common.Address, forwarder SettlementForwarder) *Vault {
	return &Vault{
		treasury:   t,
		campaignId: campaignId,
		address:    address,
		forwarder:  forwarder,
	}
}

// Vault 单个活动的资金划转执行器，实现 escrow.Vault
type Vault struct {
	treasury   *Treasury
	campaignId int64
	address    common.Address
	forwarder  SettlementForwarder
}

// Deposit 从付款方账户收入到托管账户
func (v *Vault) Deposit(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return v.treasury.db.Transaction(func(tx *gorm.DB) error {
		return moveFunds(tx, from, v.address, amount)
	})
}

// Transfer 从托管账户向指定地址出账
func (v *Vault) Transfer(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return v.treasury.db.Transaction(func(tx *gorm.DB) error {
		return moveFunds(tx, v.address, to, amount)
	})
}

// Invoke 向外部结算目标出账并留结算流水。
// 启用链上转发时，转发失败会连同账务一起回滚。
func (v *Vault) Invoke(to common.Address, amount *big.Int, payload []byte) error {
	return v.treasury.db.Transaction(func(tx *gorm.DB) error {
		if err := moveFunds(tx, v.address, to, amount); err != nil {
			return err
		}

		record := &model.SettlementRecordModel{
			CampaignId:    v.campaignId,
			TargetAddress: to.Hex(),
			Amount:        amount.String(),
			Payload:       hex.EncodeToString(payload),
			Status:        string(model.SettlementStatusPending),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("创建结算流水失败: %w", err)
		}

		if v.forwarder != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			txHash, err := v.forwarder.ForwardSettlement(ctx, to, amount, payload)
			if err != nil {
				return fmt.Errorf("结算转发失败: %w", err)
			}
			record.TxHash = txHash.Hex()
		}
		record.Status = string(model.SettlementStatusSuccess)
		if err := tx.Save(record).Error; err != nil {
			return fmt.Errorf("更新结算流水失败: %w", err)
		}
		return nil
	})
}

// moveFunds 在两个账户之间划转，付款方余额不足即失败
func moveFunds(tx *gorm.DB, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("划转金额无效")
	}
	if amount.Sign() == 0 {
		return nil
	}

	var fromAccount model.AccountModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", from.Hex()).
		First(&fromAccount).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("付款账户不存在")
	}
	if err != nil {
		return fmt.Errorf("锁定付款账户失败: %w", err)
	}

	balance := parseAmount(fromAccount.Balance)
	if balance.Cmp(amount) < 0 {
		return errors.New("账户余额不足")
	}
	balance.Sub(balance, amount)
	if err := tx.Model(&fromAccount).Update("balance", balance.String()).Error; err != nil {
		return fmt.Errorf("扣减付款账户失败: %w", err)
	}

	return creditAccount(tx, to, amount)
}

// creditAccount 给账户加钱，账户不存在时自动建立
func creditAccount(tx *gorm.DB, addr common.Address, amount *big.Int) error {
	var account model.AccountModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", addr.Hex()).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = model.AccountModel{Address: addr.Hex(), Balance: amount.String()}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("锁定收款账户失败: %w", err)
	}

	balance := parseAmount(account.Balance)
	balance.Add(balance, amount)
	if err := tx.Model(&account).Update("balance", balance.String()).Error; err != nil {
		return fmt.Errorf("增加收款账户失败: %w", err)
	}
	return nil
}

// parseAmount 十进制字符串转大整数，空串与非法值按零处理
func parseAmount(s string) *big.Int {
	if s == "" {
		return new(big.Int)
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return value
}
