package types

// Network Hyperliquid 网络
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL = "wss://api.hyperliquid-testnet.xyz/ws"
)

// IsMainnet 是否主网
func (n Network) IsMainnet() bool {
	return n != NetworkTestnet
}

// APIURL 返回 REST 根地址
func (n Network) APIURL() string {
	if n.IsMainnet() {
		return MainnetAPIURL
	}
	return TestnetAPIURL
}

// WSURL 返回 WebSocket 地址
func (n Network) WSURL() string {
	if n.IsMainnet() {
		return MainnetWSURL
	}
	return TestnetWSURL
}

// Tif 限价单有效期
type Tif string

const (
	TifGtc Tif = "Gtc" // Good Till Cancel
	TifIoc Tif = "Ioc" // Immediate Or Cancel
	TifAlo Tif = "Alo" // Add Liquidity Only
)

// SpotAssetOffset 现货资产 ID = 10000 + spotMeta.universe 下标
const SpotAssetOffset = 10000

// Signature 签名（r, s, v）
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}
