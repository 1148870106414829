package signing

const (
	// ExchangeDomainName L1 action 的 EIP712 域名
	ExchangeDomainName = "Exchange"

	// ExchangeDomainVersion EIP712 版本
	ExchangeDomainVersion = "1"

	// ExchangeChainID L1 action 固定使用 1337
	ExchangeChainID = 1337

	// ZeroAddress verifyingContract
	ZeroAddress = "0x0000000000000000000000000000000000000000"

	// phantom agent source：主网 "a"，测试网 "b"
	SourceMainnet = "a"
	SourceTestnet = "b"
)
