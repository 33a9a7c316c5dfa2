// Package crypto loads the dispatch signing key and signs transactions.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	defaultIterations = 480_000
	saltLen           = 16
	aesKeyLen         = 32
	keyFileVersion    = 1
)

// keyFile is the on-disk format of a sealed private key. The iteration
// count travels with the file so it can be raised without breaking old
// files.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeySource says where the signing key comes from. A raw hex key wins over
// a key file.
type KeySource struct {
	RawHex     string
	FilePath   string
	Passphrase string
}

// SealKey encrypts key under passphrase with PBKDF2-SHA256 and AES-256-GCM.
// The address is stored in clear so a file can be identified without the
// passphrase; it is also bound as additional data.
func SealKey(key *ecdsa.PrivateKey, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: seal key: empty passphrase")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: seal key: salt: %w", err)
	}
	gcm, err := newGCM(passphrase, salt, defaultIterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: seal key: nonce: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	sealed := gcm.Seal(nil, nonce, ethcrypto.FromECDSA(key), []byte(addr))
	return json.MarshalIndent(keyFile{
		Version:    keyFileVersion,
		Address:    addr,
		Iterations: defaultIterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, "", "  ")
}

// OpenKey decrypts a file produced by SealKey.
func OpenKey(blob []byte, passphrase string) (*ecdsa.PrivateKey, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: open key: empty passphrase")
	}
	var f keyFile
	if err := json.Unmarshal(blob, &f); err != nil {
		return nil, fmt.Errorf("crypto: open key: parse: %w", err)
	}
	if f.Version != keyFileVersion {
		return nil, fmt.Errorf("crypto: open key: unsupported version %d", f.Version)
	}
	if f.Iterations <= 0 {
		return nil, fmt.Errorf("crypto: open key: invalid iteration count %d", f.Iterations)
	}

	var salt, nonce, sealed []byte
	for _, field := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", f.Salt, &salt},
		{"nonce", f.Nonce, &nonce},
		{"ciphertext", f.Ciphertext, &sealed},
	} {
		b, err := base64.StdEncoding.DecodeString(field.in)
		if err != nil {
			return nil, fmt.Errorf("crypto: open key: decode %s: %w", field.name, err)
		}
		*field.out = b
	}

	gcm, err := newGCM(passphrase, salt, f.Iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: open key: nonce length %d", len(nonce))
	}
	raw, err := gcm.Open(nil, nonce, sealed, []byte(f.Address))
	if err != nil {
		return nil, fmt.Errorf("crypto: open key: wrong passphrase or corrupted file: %w", err)
	}
	key, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("crypto: open key: %w", err)
	}
	return key, nil
}

func newGCM(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(passphrase), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves the signing key from src.
func LoadKey(src KeySource) (*ecdsa.PrivateKey, error) {
	if src.RawHex != "" {
		key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(src.RawHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("crypto: load key: raw key: %w", err)
		}
		return key, nil
	}
	if src.FilePath != "" {
		blob, err := os.ReadFile(src.FilePath)
		if err != nil {
			return nil, fmt.Errorf("crypto: load key: %w", err)
		}
		return OpenKey(blob, src.Passphrase)
	}
	return nil, errors.New("crypto: load key: no key source configured")
}
