package client

import (
	"github.com/ethereum/go-ethereum/common"
)

// CanSign 是否配置了签名私钥
func (c *Client) CanSign() bool {
	return c.privateKey != nil
}

// Address 签名地址（API agent 钱包）。只读模式下为零地址。
func (c *Client) Address() common.Address {
	return c.signerAddress()
}

// Vault 代理下单的 vault 地址，未设置时为 nil
func (c *Client) Vault() *common.Address {
	return c.vault
}
