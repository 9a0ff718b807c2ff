package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/fundlock/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client 外部结算链客户端：把委托结算出账转发到链上结算合约
type Client struct {
	client     *ethclient.Client
	privateKey *ecdsa.PrivateKey
	chainId    *big.Int
	gasLimit   uint64
}

func Init(cfg config.ChainConfig) (*Client, error) {
	// 连接以太坊客户端
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ethereum client: %w", err)
	}

	// 解析私钥
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 200000
	}

	return &Client{
		client:     client,
		privateKey: privateKey,
		chainId:    big.NewInt(cfg.ChainId),
		gasLimit:   gasLimit,
	}, nil
}

// AccountAddress 获取结算账户地址
func (c *Client) AccountAddress() common.Address {
	return crypto.PubkeyToAddress(c.privateKey.PublicKey)
}

// ForwardSettlement 构造并发送携带结算参数的交易，返回交易哈希
func (c *Client) ForwardSettlement(ctx context.Context, to common.Address, amount *big.Int, payload []byte) (common.Hash, error) {
	from := c.AccountAddress()

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取账户nonce失败: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("获取Gas价格失败: %w", err)
	}

	tx := types.NewTransaction(nonce, to, amount, c.gasLimit, gasPrice, payload)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainId), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("签署结算交易失败: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("发送结算交易失败: %w", err)
	}
	return signed.Hash(), nil
}

// IsSettlementConfirmed 检查结算交易是否已上链
func (c *Client) IsSettlementConfirmed(ctx context.Context, txHash common.Hash) (bool, error) {
	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return false, err
	}
	return receipt != nil && receipt.Status == types.ReceiptStatusSuccessful, nil
}
