package signing

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/betbot/hlarb/hl/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// AgentTypedDataHash 计算 phantom agent 的 EIP712 哈希
func AgentTypedDataHash(connectionID common.Hash, isMainnet bool) ([]byte, error) {
	source := SourceTestnet
	if isMainnet {
		source = SourceMainnet
	}

	domain := apitypes.TypedDataDomain{
		Name:              ExchangeDomainName,
		Version:           ExchangeDomainVersion,
		ChainId:           math.NewHexOrDecimal256(ExchangeChainID),
		VerifyingContract: ZeroAddress,
	}

	typeDefs := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Agent": {
			{Name: "source", Type: "string"},
			{Name: "connectionId", Type: "bytes32"},
		},
	}

	typedData := apitypes.TypedData{
		Types:       typeDefs,
		PrimaryType: "Agent",
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Hex(),
		},
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("计算 EIP712 哈希失败: %w", err)
	}
	return hash, nil
}

// SignL1Action 对 L1 action 签名（下单、撤单、调杠杆）
func SignL1Action(
	privateKey *ecdsa.PrivateKey,
	action any,
	vault *common.Address,
	nonce int64,
	isMainnet bool,
) (types.Signature, error) {
	if privateKey == nil {
		return types.Signature{}, fmt.Errorf("私钥未配置")
	}

	connectionID, err := ActionHash(action, vault, nonce)
	if err != nil {
		return types.Signature{}, err
	}

	hash, err := AgentTypedDataHash(connectionID, isMainnet)
	if err != nil {
		return types.Signature{}, err
	}

	// crypto.Sign 返回 r(32) + s(32) + v(1)，v 为 0/1
	sig, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return types.Signature{}, fmt.Errorf("签名失败: %w", err)
	}

	return types.Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

// GetAddressFromPrivateKey 从私钥获取地址
func GetAddressFromPrivateKey(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}

// PrivateKeyFromHex 从十六进制字符串解析私钥（允许 0x 前缀）
func PrivateKeyFromHex(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}
