package client

import (
	"crypto/ecdsa"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/hlarb/hl/signing"
	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/pkg/ratelimit"
)

// Client Hyperliquid REST 客户端
type Client struct {
	host        string
	network     types.Network
	privateKey  *ecdsa.PrivateKey
	vault       *common.Address
	timeout     time.Duration
	exchTimeout time.Duration
	httpClient  *httpClient
	rateLimiter *ratelimit.RateLimitManager

	nonceMu   sync.Mutex
	lastNonce int64
	now       func() time.Time
}

// Option 客户端选项
type Option func(*Client)

// WithHost 覆盖 REST 根地址（测试或自建节点）
func WithHost(host string) Option {
	return func(c *Client) { c.host = strings.TrimSuffix(host, "/") }
}

// WithVault 以 vault/子账户身份下单
func WithVault(addr common.Address) Option {
	return func(c *Client) { c.vault = &addr }
}

// WithTimeout /info 单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithExchangeTimeout /exchange 传输层超时。默认不设，由调用方 ctx 控制。
func WithExchangeTimeout(d time.Duration) Option {
	return func(c *Client) { c.exchTimeout = d }
}

// WithRateLimiter 共享限速器
func WithRateLimiter(m *ratelimit.RateLimitManager) Option {
	return func(c *Client) { c.rateLimiter = m }
}

// NewClient 创建客户端。privateKey 可为 nil（只读模式，仅能调用 info）。
func NewClient(network types.Network, privateKey *ecdsa.PrivateKey, opts ...Option) *Client {
	c := &Client{
		host:       network.APIURL(),
		network:    network,
		privateKey: privateKey,
		timeout:    10 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rateLimiter == nil {
		c.rateLimiter = ratelimit.NewRateLimitManager()
	}
	c.httpClient = newHTTPClient(c.host, c.timeout, c.exchTimeout)
	return c
}

// GetHost 获取主机地址
func (c *Client) GetHost() string {
	return c.host
}

// Network 当前网络
func (c *Client) Network() types.Network {
	return c.network
}

// nextNonce 毫秒时间戳，保证严格递增
func (c *Client) nextNonce() int64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()

	n := c.now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return n
}

// signerAddress 签名私钥对应地址
func (c *Client) signerAddress() common.Address {
	if c.privateKey == nil {
		return common.Address{}
	}
	return signing.GetAddressFromPrivateKey(c.privateKey)
}
