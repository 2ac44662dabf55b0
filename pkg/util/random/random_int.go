package random

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// GetRandomInt64Range 生成 [min, max) 范围内的安全随机数（用于配对码）
// max <= min 时直接返回 min
func GetRandomInt64Range(min, max int64) int64 {
	if max <= min {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min))
	if err != nil {
		return min // fallback
	}
	return n.Int64() + min
}

// GetRandomInt 生成指定位数的安全随机数字
// 例如 length=6 时，范围是 100000-999999
func GetRandomInt(length int) int {
	min := int64(1)
	for i := 1; i < length; i++ {
		min *= 10
	}
	return int(GetRandomInt64Range(min, min*10))
}

// GetRandomHex 生成 n 字节随机数的十六进制表示
func GetRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
