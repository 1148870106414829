package signing

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeAction 对 action 做 msgpack 编码。
// 整数必须使用最紧凑编码，否则哈希与服务端不一致。
func EncodeAction(action any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, fmt.Errorf("msgpack 编码 action 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// ActionHash keccak256(msgpack(action) || nonce(8字节大端) || vault 标记)
//
// vault 为 nil 时追加 0x00，否则追加 0x01 + 20 字节地址。
func ActionHash(action any, vault *common.Address, nonce int64) (common.Hash, error) {
	data, err := EncodeAction(action)
	if err != nil {
		return common.Hash{}, err
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))
	data = append(data, nonceBytes[:]...)

	if vault == nil {
		data = append(data, 0x00)
	} else {
		data = append(data, 0x01)
		data = append(data, vault.Bytes()...)
	}
	return crypto.Keccak256Hash(data), nil
}
