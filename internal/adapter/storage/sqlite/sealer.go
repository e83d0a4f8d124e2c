// Package sqlite file: internal/adapter/storage/sqlite/sealer.go
package sqlite

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// sealer 使用 secretbox 加解密存储中的密钥数据
type sealer struct {
	key [32]byte
}

func newSealer(secretKey string) (*sealer, error) {
	if secretKey == "" {
		return nil, errors.New("存储加密密钥不能为空")
	}
	return &sealer{key: sha256.Sum256([]byte(secretKey))}, nil
}

// seal 返回 nonce || box
func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("生成 nonce 失败: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, errors.New("密文长度不正确")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("密文校验失败，加密密钥可能已变更")
	}
	return plain, nil
}
