package keys

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/secretstore"
)

// DerivedWallet 助记词派生结果
type DerivedWallet struct {
	PrivateKey *ecdsa.PrivateKey
	Address    string // 小写 0x 地址
}

// DeriveFromMnemonic 按 BIP-44 路径从助记词派生私钥
func DeriveFromMnemonic(mnemonic, derivationPath string) (*DerivedWallet, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	derivationPath = strings.TrimSpace(derivationPath)
	if mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}
	if derivationPath == "" {
		return nil, errors.New("derivation_path is required")
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid derivation_path")
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "derive failed")
	}
	pk, err := w.PrivateKey(acct)
	if err != nil {
		return nil, errors.Wrap(err, "private key failed")
	}
	return &DerivedWallet{
		PrivateKey: pk,
		Address:    strings.ToLower(acct.Address.Hex()),
	}, nil
}

// ParseHex 解析十六进制私钥（允许 0x 前缀）
func ParseHex(hexKey string) (*ecdsa.PrivateKey, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "无效的私钥")
	}
	return pk, nil
}

// Resolve 按 私钥 > 助记词 > badger 密钥库 的顺序取得 agent 私钥
func Resolve(kc config.KeyConfig) (*ecdsa.PrivateKey, error) {
	switch {
	case kc.PrivateKeyHex != "":
		return ParseHex(kc.PrivateKeyHex)
	case kc.Mnemonic != "":
		w, err := DeriveFromMnemonic(kc.Mnemonic, kc.DerivationPath)
		if err != nil {
			return nil, err
		}
		return w.PrivateKey, nil
	case kc.SecretStorePath != "":
		return fromSecretStore(kc)
	default:
		return nil, errors.New("未配置私钥来源")
	}
}

func fromSecretStore(kc config.KeyConfig) (*ecdsa.PrivateKey, error) {
	encKey, err := secretstore.ParseKey(kc.SecretStorePass)
	if err != nil {
		return nil, errors.Wrap(err, "HL_SECRET_STORE_ENCRYPTION_KEY")
	}
	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          kc.SecretStorePath,
		EncryptionKey: encKey,
		ReadOnly:      true,
	})
	if err != nil {
		return nil, err
	}
	defer ss.Close()

	val, found, err := ss.GetString(kc.SecretStoreKey)
	if err != nil {
		return nil, err
	}
	if !found || strings.TrimSpace(val) == "" {
		return nil, errors.Errorf("密钥库 %s 中不存在 key %q", kc.SecretStorePath, kc.SecretStoreKey)
	}
	return ParseHex(val)
}
