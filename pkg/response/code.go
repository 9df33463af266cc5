package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 鉴权错误 100xx
	ErrTokenInvalid = 10004

	// 购物车错误 200xx
	ErrCartItemNotFound = 20001
	ErrCartUnavailable  = 20002

	// 结账/订单错误 300xx
	ErrCheckoutInvalid   = 30001 // 收货信息不完整
	ErrTokenConflict     = 30002 // 幂等令牌失效，已重新获取
	ErrSubmitInProgress  = 30003 // 重复提交
	ErrOrderCreateFailed = 30004
	ErrOrderPollTimeout  = 30005

	// 支付错误 400xx
	ErrPaymentMethod      = 40001
	ErrPaymentInitFailed  = 40002
	ErrPaymentSessionGone = 40003

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrUpstream        = 50004
)
