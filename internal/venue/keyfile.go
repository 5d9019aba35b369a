package venue

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultDerivationPath 助记词默认派生路径
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// LoadKeyFile 读取私钥文件。支持四种格式：
//   - JSON 字节数组（取前 32 字节作为私钥，兼容 64 字节的 secret key 文件）
//   - 十六进制字符串（可带 0x 前缀和引号）
//   - BIP-39 助记词（按 DefaultDerivationPath 派生）
//   - base58 编码的 32 或 64 字节 secret（64 字节时取前 32 字节）
func LoadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取私钥文件失败 %s: %w", path, err)
	}
	key, err := ParseKey(raw)
	if err != nil {
		return nil, fmt.Errorf("解析私钥文件失败 %s: %w", path, err)
	}
	return key, nil
}

// ParseKey 解析私钥内容
func ParseKey(raw []byte) (*ecdsa.PrivateKey, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("私钥内容为空")
	}

	if strings.HasPrefix(text, "[") {
		var arr []int
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, fmt.Errorf("JSON 字节数组格式错误: %w", err)
		}
		if len(arr) < 32 {
			return nil, fmt.Errorf("JSON 字节数组长度不足: %d", len(arr))
		}
		b := make([]byte, 32)
		for i := 0; i < 32; i++ {
			if arr[i] < 0 || arr[i] > 255 {
				return nil, fmt.Errorf("JSON 字节数组第 %d 项越界: %d", i, arr[i])
			}
			b[i] = byte(arr[i])
		}
		return crypto.ToECDSA(b)
	}

	text = strings.Trim(text, "\"'")
	if words := strings.Fields(text); len(words) >= 12 {
		return deriveFromMnemonic(strings.Join(words, " "), DefaultDerivationPath)
	}

	if hexKey := strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X"); len(hexKey) == 64 {
		if key, err := crypto.HexToECDSA(hexKey); err == nil {
			return key, nil
		}
	}

	switch b := base58.Decode(text); len(b) {
	case 32, 64:
		return crypto.ToECDSA(b[:32])
	}
	return nil, fmt.Errorf("无法识别的私钥格式")
}

func deriveFromMnemonic(mnemonic, derivationPath string) (*ecdsa.PrivateKey, error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation_path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}
	pk, err := w.PrivateKeyHex(acct)
	if err != nil {
		return nil, fmt.Errorf("private key failed: %w", err)
	}
	return crypto.HexToECDSA(pk)
}
