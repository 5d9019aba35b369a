package venue

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// 写请求认证头
const (
	HeaderTrader    = "X-Trader"
	HeaderSignature = "X-Signature"
)

// Signer 对请求体签名
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner 创建签名器
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// Address 交易者地址
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign 返回 keccak256(body) 的 secp256k1 签名（0x 前缀，65 字节 r+s+v）
func (s *Signer) Sign(body []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(body), s.key)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// RecoverSigner 从签名恢复签名者地址
func RecoverSigner(body []byte, signature string) (common.Address, error) {
	sig := common.FromHex(strings.TrimSpace(signature))
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("签名长度错误: %d", len(sig))
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("恢复公钥失败: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
