package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

// NEP-2 scrypt parameters. These are fixed by the format.
const (
	nep2ScryptN      = 16384
	nep2ScryptR      = 8
	nep2ScryptP      = 8
	nep2DerivedLen   = 64
	nep2AddrHashLen  = 4
	nep2PayloadSize  = 39
	nep2CipherOffset = 3 + nep2AddrHashLen
)

var nep2Prefix = []byte{0x01, 0x42, 0xe0}

var (
	// ErrInvalidNEP2 is returned when a string is not a NEP-2 encrypted key.
	ErrInvalidNEP2 = errors.New("invalid NEP-2 key")
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// ciphertext has been modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key")
)

// IsNEP2 reports whether s is a well formed NEP-2 string.
func IsNEP2(s string) bool {
	_, err := decodeNEP2(s)
	return err == nil
}

func decodeNEP2(s string) ([]byte, error) {
	payload, err := checkDecode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNEP2, err)
	}
	if len(payload) != nep2PayloadSize || !bytes.HasPrefix(payload, nep2Prefix) {
		return nil, ErrInvalidNEP2
	}
	return payload, nil
}

// addressHash is the salt NEP-2 binds to the account address.
func addressHash(address string) []byte {
	return doubleSHA256([]byte(address))[:nep2AddrHashLen]
}

func deriveNEP2Key(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key(norm.NFC.Bytes([]byte(passphrase)), salt, nep2ScryptN, nep2ScryptR, nep2ScryptP, nep2DerivedLen)
}

// EncryptNEP2 protects k with passphrase.
func EncryptNEP2(k PrivateKey, passphrase string) (string, error) {
	salt := addressHash(k.Address())
	derived, err := deriveNEP2Key(passphrase, salt)
	if err != nil {
		return "", err
	}
	defer Wipe(derived)
	half1, half2 := derived[:PrivateKeySize], derived[PrivateKeySize:]

	xored := make([]byte, PrivateKeySize)
	defer Wipe(xored)
	subtle.XORBytes(xored, k[:], half1)

	block, err := aes.NewCipher(half2)
	if err != nil {
		return "", err
	}
	payload := make([]byte, 0, nep2PayloadSize)
	payload = append(payload, nep2Prefix...)
	payload = append(payload, salt...)
	payload = payload[:nep2PayloadSize]
	// ECB over two blocks.
	for off := 0; off < PrivateKeySize; off += aes.BlockSize {
		block.Encrypt(payload[nep2CipherOffset+off:], xored[off:off+aes.BlockSize])
	}
	return checkEncode(payload), nil
}

// DecryptNEP2 recovers the private key protected by passphrase. A wrong
// passphrase is detected through the embedded address hash.
func DecryptNEP2(encrypted, passphrase string) (PrivateKey, error) {
	var k PrivateKey
	payload, err := decodeNEP2(encrypted)
	if err != nil {
		return k, err
	}
	salt := payload[3:nep2CipherOffset]
	cipherText := payload[nep2CipherOffset:]

	derived, err := deriveNEP2Key(passphrase, salt)
	if err != nil {
		return k, err
	}
	defer Wipe(derived)
	half1, half2 := derived[:PrivateKeySize], derived[PrivateKeySize:]

	block, err := aes.NewCipher(half2)
	if err != nil {
		return k, err
	}
	plain := make([]byte, PrivateKeySize)
	defer Wipe(plain)
	for off := 0; off < PrivateKeySize; off += aes.BlockSize {
		block.Decrypt(plain[off:off+aes.BlockSize], cipherText[off:off+aes.BlockSize])
	}
	subtle.XORBytes(plain, plain, half1)

	k, err = keyFromBytes(plain)
	if err != nil {
		return PrivateKey{}, ErrWrongPassphrase
	}
	if subtle.ConstantTimeCompare(addressHash(k.Address()), salt) != 1 {
		k.Wipe()
		return PrivateKey{}, ErrWrongPassphrase
	}
	return k, nil
}
