package client

// API 端点
const (
	EndpointInfo     = "/info"
	EndpointExchange = "/exchange"
)

// info 请求类型
const (
	InfoTypeL2Book                 = "l2Book"
	InfoTypeMeta                   = "meta"
	InfoTypeSpotMeta               = "spotMeta"
	InfoTypeClearinghouseState     = "clearinghouseState"
	InfoTypeSpotClearinghouseState = "spotClearinghouseState"
	InfoTypeOpenOrders             = "openOrders"
)
