// env2badger 把 .env 中的 agent 私钥写入加密的 badger 密钥库，之后可删除 .env 里的明文私钥，
// 运行时通过 HL_SECRET_STORE_PATH 读取。
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"

	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/keys"
	"github.com/betbot/hlarb/pkg/secretstore"
)

const defaultSecretDB = "data/secrets.badger"

func main() {
	var (
		inPath    = flag.String("in", ".env", "输入 .env 文件")
		dbPath    = flag.String("badger", getenv("HL_SECRET_STORE_PATH", defaultSecretDB), "badger 密钥库目录")
		secretKey = flag.String("secret-key", getenv("HL_SECRET_STORE_ENCRYPTION_KEY", ""), "badger 加密密钥（32 字节 base64/hex）")
		keyName   = flag.String("key-name", getenv("HL_SECRET_STORE_KEY", config.DefaultSecretStoreKey), "私钥在库内的 key")
		all       = flag.Bool("all", false, "同时导入 .env 的全部条目（以 -prefix 为前缀）")
		prefix    = flag.String("prefix", "env/", "-all 时库内 key 前缀")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("必须提供加密密钥: 设置 HL_SECRET_STORE_ENCRYPTION_KEY 或传 -secret-key"))
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}
	hexKey, err := agentKeyHex(kv)
	if err != nil {
		fatal(err)
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if err := ss.SetString(*keyName, hexKey); err != nil {
		fatal(err)
	}
	written := 1
	if *all {
		for k, v := range kv {
			if err := ss.SetString((*prefix)+k, v); err != nil {
				fatal(err)
			}
			written++
		}
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 项到 badger：%s（私钥 key=%s）\n", written, *dbPath, *keyName)
}

// agentKeyHex 取 .env 中的私钥（或由助记词推导），校验与 HL_API_AGENT_WALLET_ADDRESS 一致
func agentKeyHex(kv map[string]string) (string, error) {
	var hexKey string
	switch {
	case strings.TrimSpace(kv["HL_API_AGENT_PRIVATE_KEY"]) != "":
		pk, err := keys.ParseHex(kv["HL_API_AGENT_PRIVATE_KEY"])
		if err != nil {
			return "", err
		}
		hexKey = fmt.Sprintf("%x", crypto.FromECDSA(pk))
	case strings.TrimSpace(kv["HL_API_AGENT_MNEMONIC"]) != "":
		path := kv["HL_DERIVATION_PATH"]
		if path == "" {
			path = config.DefaultDerivationPath
		}
		w, err := keys.DeriveFromMnemonic(kv["HL_API_AGENT_MNEMONIC"], path)
		if err != nil {
			return "", err
		}
		hexKey = fmt.Sprintf("%x", crypto.FromECDSA(w.PrivateKey))
	default:
		return "", fmt.Errorf(".env 中没有 HL_API_AGENT_PRIVATE_KEY 或 HL_API_AGENT_MNEMONIC")
	}

	pk, err := keys.ParseHex(hexKey)
	if err != nil {
		return "", err
	}
	derived := crypto.PubkeyToAddress(pk.PublicKey)
	if want := strings.TrimSpace(kv["HL_API_AGENT_WALLET_ADDRESS"]); want != "" {
		addr, err := config.ParseAddress(want)
		if err != nil {
			return "", err
		}
		if addr != derived {
			return "", fmt.Errorf("私钥地址 %s 与 HL_API_AGENT_WALLET_ADDRESS %s 不一致", derived.Hex(), addr.Hex())
		}
	}
	fmt.Fprintf(os.Stderr, "agent 地址: %s\n", derived.Hex())
	return hexKey, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
