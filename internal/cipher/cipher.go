// Package cipher encrypts connection strings stored in dependent configuration files.
package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/sha256"
	"encoding/base64"

	apperrors "CSU/internal/errors"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultKey is the key shared with the dependent applications.
const DefaultKey = "0679d9ae-aca5-4702-a3f5-604415096987"

// Strength is the AES key size in bits.
type Strength int

const (
	AES128 Strength = 128
	AES192 Strength = 192
	AES256 Strength = 256
)

const derivationRounds = 4096

var derivationSalt = []byte("CSU.ConnectionString")

// Cipher binds a key and strength so callers need not repeat them.
type Cipher struct {
	Key      string
	Strength Strength
}

// Default returns the cipher used for every stored connection string.
func Default() Cipher {
	return Cipher{Key: DefaultKey, Strength: AES256}
}

// Encrypt encrypts plain with the bound key and strength.
func (c Cipher) Encrypt(plain string) (string, error) {
	return Encrypt(plain, c.Key, c.Strength)
}

// Decrypt reverses Encrypt.
func (c Cipher) Decrypt(cipherText string) (string, error) {
	return Decrypt(cipherText, c.Key, c.Strength)
}

// Encrypt returns base64(AES-CBC(PKCS#7(plain))) under a key derived from key.
func Encrypt(plain, key string, strength Strength) (string, error) {
	block, iv, err := newBlock(key, strength)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plain), block.BlockSize())
	out := make([]byte, len(padded))
	stdcipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt returns the plain text of a value produced by Encrypt.
func Decrypt(cipherText, key string, strength Strength) (string, error) {
	block, iv, err := newBlock(key, strength)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", newCipherError("cipher text is not valid base64", err)
	}
	if len(raw) == 0 || len(raw)%block.BlockSize() != 0 {
		return "", newCipherError("cipher text length is not a multiple of the block size", nil)
	}

	out := make([]byte, len(raw))
	stdcipher.NewCBCDecrypter(block, iv).CryptBlocks(out, raw)

	plain, err := unpad(out, block.BlockSize())
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func newBlock(key string, strength Strength) (stdcipher.Block, []byte, error) {
	switch strength {
	case AES128, AES192, AES256:
	default:
		return nil, nil, apperrors.ValidationError(apperrors.CodeValidationGeneric, "unsupported cipher strength", nil).
			WithModule("cipher").
			WithField("strength", int(strength))
	}
	if key == "" {
		return nil, nil, apperrors.ValidationError(apperrors.CodeValidationGeneric, "cipher key is required", nil).
			WithModule("cipher")
	}

	keyLen := int(strength) / 8
	material := pbkdf2.Key([]byte(key), derivationSalt, derivationRounds, keyLen+aes.BlockSize, sha256.New)

	block, err := aes.NewCipher(material[:keyLen])
	if err != nil {
		return nil, nil, newCipherError("failed to initialise AES", err)
	}
	return block, material[keyLen:], nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, newCipherError("invalid padding", nil)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, newCipherError("invalid padding", nil)
		}
	}
	return data[:len(data)-n], nil
}

func newCipherError(message string, err error) *apperrors.AppError {
	return apperrors.ConfigError(apperrors.CodeConfigGeneric, message, err).WithModule("cipher")
}
