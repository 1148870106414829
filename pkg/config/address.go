package config

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// OptionalAddress 可选地址。未配置与零地址是两种不同状态。
type OptionalAddress struct {
	addr common.Address
	set  bool
}

// SomeAddress 已配置的地址
func SomeAddress(addr common.Address) OptionalAddress {
	return OptionalAddress{addr: addr, set: true}
}

// NoAddress 未配置
func NoAddress() OptionalAddress {
	return OptionalAddress{}
}

// Get 返回地址以及是否已配置
func (o OptionalAddress) Get() (common.Address, bool) {
	return o.addr, o.set
}

// IsSet 是否已配置
func (o OptionalAddress) IsSet() bool {
	return o.set
}

func (o OptionalAddress) String() string {
	if !o.set {
		return "<none>"
	}
	return o.addr.Hex()
}

// ParseAddress 解析 0x 开头的 20 字节十六进制地址
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Errorf("无效的地址: %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseOptionalAddress 空字符串视为未配置
func ParseOptionalAddress(s string) (OptionalAddress, error) {
	if strings.TrimSpace(s) == "" {
		return NoAddress(), nil
	}
	addr, err := ParseAddress(s)
	if err != nil {
		return NoAddress(), err
	}
	return SomeAddress(addr), nil
}
