package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/TEENet-io/bridge-verifier/common"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	fileVersion = 1

	defaultScryptN = 1 << 15
	scryptR        = 8
	scryptP        = 1
)

var (
	ErrWrongPassword = errors.New("keystore: wrong password or corrupted entry")
	ErrFileVersion   = errors.New("keystore: unsupported file version")
)

type kdfParams struct {
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
	Salt string `json:"salt"`
}

type sealedEntry struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	Box     string `json:"box"`
}

type keystoreFile struct {
	Version int           `json:"version"`
	Kdf     kdfParams     `json:"kdf"`
	Keys    []sealedEntry `json:"keys"`
}

func deriveKey(password string, p *kdfParams) (*[32]byte, error) {
	salt, err := common.DecodeHex(p.Salt)
	if err != nil {
		return nil, err
	}
	dk, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, 32)
	if err != nil {
		return nil, err
	}
	var key [32]byte
	copy(key[:], dk)
	return &key, nil
}

// Encrypt seals the private keys of entries with a key derived from
// password. scryptN of 0 selects the default cost.
func Encrypt(entries []KeyEntry, password string, scryptN int) ([]byte, error) {
	if scryptN == 0 {
		scryptN = defaultScryptN
	}
	f := keystoreFile{
		Version: fileVersion,
		Kdf: kdfParams{
			N:    scryptN,
			R:    scryptR,
			P:    scryptP,
			Salt: common.EncodeHex(common.RandBytes(32)),
		},
	}
	key, err := deriveKey(password, &f.Kdf)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		var nonce [24]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return nil, err
		}
		box := secretbox.Seal(nil, []byte(e.PrivKey), &nonce, key)
		f.Keys = append(f.Keys, sealedEntry{
			Chain:   e.Chain,
			Address: e.Address,
			Nonce:   common.EncodeHex(nonce[:]),
			Box:     common.EncodeHex(box),
		})
	}
	return json.MarshalIndent(&f, "", "  ")
}

// Decrypt opens a keystore produced by Encrypt.
func Decrypt(data []byte, password string) ([]KeyEntry, error) {
	var f keystoreFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version != fileVersion {
		return nil, ErrFileVersion
	}
	key, err := deriveKey(password, &f.Kdf)
	if err != nil {
		return nil, err
	}

	entries := make([]KeyEntry, 0, len(f.Keys))
	for i, k := range f.Keys {
		nonceBytes, err := common.DecodeHex(k.Nonce)
		if err != nil || len(nonceBytes) != 24 {
			return nil, fmt.Errorf("keystore entry %d: bad nonce", i)
		}
		box, err := common.DecodeHex(k.Box)
		if err != nil {
			return nil, fmt.Errorf("keystore entry %d: %w", i, err)
		}
		var nonce [24]byte
		copy(nonce[:], nonceBytes)
		priv, ok := secretbox.Open(nil, box, &nonce, key)
		if !ok {
			return nil, ErrWrongPassword
		}
		entries = append(entries, KeyEntry{Chain: k.Chain, Address: k.Address, PrivKey: string(priv)})
	}
	return entries, nil
}

// LoadFile decrypts the keystore at path.
func LoadFile(path, password string) ([]KeyEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(data, password)
}
