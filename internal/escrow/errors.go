package escrow

import "errors"

// 每种拒绝原因对应一个独立的哨兵错误，调用方通过 errors.Is 分支处理，
// 不需要匹配错误文本。
var (
	// 时间窗口类错误
	ErrAfterDeadline      = errors.New("活动已过截止时间")
	ErrClaimWindowExpired = errors.New("提取窗口已过期")
	ErrWindowNotElapsed   = errors.New("时间窗口尚未到达")

	// 授权类错误
	ErrNotCreator           = errors.New("只有创建者可以执行此操作")
	ErrUnauthorized         = errors.New("无权执行此操作")
	ErrInvalidAuthorization = errors.New("委托授权无效")
	ErrAuthorizationExpired = errors.New("委托授权已过期")

	// 状态类错误
	ErrAlreadyClaimed    = errors.New("活动资金已被提取")
	ErrAlreadyCancelled  = errors.New("活动已被取消")
	ErrGoalNotReached    = errors.New("活动目标未达成")
	ErrCampaignFailed    = errors.New("活动已失败")
	ErrCampaignCancelled = errors.New("活动处于已取消状态")
	ErrCampaignClaimed   = errors.New("活动处于已提取状态")
	ErrCampaignFinalized = errors.New("活动已终结")

	// 账务类错误
	ErrZeroContribution              = errors.New("没有可退款的贡献记录")
	ErrZeroAmount                    = errors.New("金额必须大于0")
	ErrFeeExceedsAmount              = errors.New("贡献者手续费不能大于等于贡献金额")
	ErrProcessingFeeTooHigh          = errors.New("处理费超过可用金额")
	ErrInsufficientQualifyingBalance = errors.New("合格余额不足")
	ErrRefundDuringClaimWindow       = errors.New("提取窗口期间不允许退款")

	// 划转类错误，包装底层失败原因
	ErrFailedTransfer = errors.New("资金划转失败")
)
