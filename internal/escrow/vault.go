package escrow

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Vault 托管资金划转执行器。状态机只负责账务，实际资金的进出
// 全部通过该接口完成。出账顺序固定：先手续费接收方，后主受益方。
// 任何一笔划转失败都会使整个操作失败，状态机不做重试。
type Vault interface {
	// Deposit 从付款方账户收入指定金额到本活动托管账户
	Deposit(from common.Address, amount *big.Int) error

	// Transfer 从托管账户向指定地址出账
	Transfer(to common.Address, amount *big.Int) error

	// Invoke 向外部结算合约出账并携带不透明的结算参数，
	// 用于委托授权路径。实现方必须检查调用结果，不能假定同步成功。
	Invoke(to common.Address, amount *big.Int, payload []byte) error
}
