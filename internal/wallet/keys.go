package wallet

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	PrivateKeySize          = 32
	PublicKeySize           = 33
	uncompressedPubKeySize  = 65
	wifVersion              = 0x80
	wifCompressedFlag       = 0x01
	wifPayloadSize          = 1 + PrivateKeySize + 1
	compressedEvenPrefix    = 0x02
	compressedOddPrefix     = 0x03
	uncompressedPointPrefix = 0x04
)

var (
	// ErrInvalidKey is returned when a string is neither a WIF nor a hex private key.
	ErrInvalidKey = errors.New("invalid private key")
	// ErrInvalidWIF is returned when a WIF string fails to decode.
	ErrInvalidWIF = errors.New("invalid WIF")
	// ErrInvalidPublicKey is returned for malformed or off-curve public keys.
	ErrInvalidPublicKey = errors.New("invalid public key")
)

// PrivateKey is a secp256r1 scalar in big-endian form.
type PrivateKey [PrivateKeySize]byte

// PublicKey is a SEC1 compressed secp256r1 point.
type PublicKey [PublicKeySize]byte

// ParsePrivateKey decodes a 64 character hex private key.
func ParsePrivateKey(s string) (PrivateKey, error) {
	var k PrivateKey
	if len(s) != hex.EncodedLen(PrivateKeySize) {
		return k, fmt.Errorf("%w: expected %d hex characters", ErrInvalidKey, hex.EncodedLen(PrivateKeySize))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer Wipe(raw)
	return keyFromBytes(raw)
}

// ParseWIF decodes a compressed wallet-import-format key.
func ParseWIF(s string) (PrivateKey, error) {
	var k PrivateKey
	payload, err := checkDecode(s)
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	defer Wipe(payload)
	if len(payload) != wifPayloadSize || payload[0] != wifVersion || payload[wifPayloadSize-1] != wifCompressedFlag {
		return k, ErrInvalidWIF
	}
	k, err = keyFromBytes(payload[1 : 1+PrivateKeySize])
	if err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	return k, nil
}

// ParseKey accepts either a WIF or a hex private key.
func ParseKey(s string) (PrivateKey, error) {
	if k, err := ParseWIF(s); err == nil {
		return k, nil
	}
	if k, err := ParsePrivateKey(s); err == nil {
		return k, nil
	}
	return PrivateKey{}, ErrInvalidKey
}

// IsWIF reports whether s is a well formed WIF.
func IsWIF(s string) bool {
	_, err := ParseWIF(s)
	return err == nil
}

// IsPrivateKey reports whether s is a well formed hex private key.
func IsPrivateKey(s string) bool {
	_, err := ParsePrivateKey(s)
	return err == nil
}

func keyFromBytes(b []byte) (PrivateKey, error) {
	var k PrivateKey
	if len(b) != PrivateKeySize {
		return k, ErrInvalidKey
	}
	// Rejects zero and scalars outside the group order.
	if _, err := ecdh.P256().NewPrivateKey(b); err != nil {
		return k, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	copy(k[:], b)
	return k, nil
}

// WIF returns the compressed wallet-import-format encoding of k.
func (k PrivateKey) WIF() string {
	payload := make([]byte, 0, wifPayloadSize)
	payload = append(payload, wifVersion)
	payload = append(payload, k[:]...)
	payload = append(payload, wifCompressedFlag)
	defer Wipe(payload)
	return checkEncode(payload)
}

// Hex returns the raw key as lowercase hex.
func (k PrivateKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// PublicKey derives the compressed public key of k.
func (k PrivateKey) PublicKey() PublicKey {
	priv, err := ecdh.P256().NewPrivateKey(k[:])
	if err != nil {
		// Unreachable for keys built through this package.
		panic("wallet: invalid private key: " + err.Error())
	}
	return compress(priv.PublicKey().Bytes())
}

// Address derives the account address of k.
func (k PrivateKey) Address() string {
	return k.PublicKey().Address()
}

// ParsePublicKey accepts a compressed or uncompressed hex public key and
// returns it in compressed form.
func ParsePublicKey(s string) (PublicKey, error) {
	var p PublicKey
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	switch {
	case len(raw) == PublicKeySize && (raw[0] == compressedEvenPrefix || raw[0] == compressedOddPrefix):
		if x, _ := elliptic.UnmarshalCompressed(elliptic.P256(), raw); x == nil {
			return p, fmt.Errorf("%w: point not on curve", ErrInvalidPublicKey)
		}
		copy(p[:], raw)
		return p, nil
	case len(raw) == uncompressedPubKeySize && raw[0] == uncompressedPointPrefix:
		if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
		}
		return compress(raw), nil
	default:
		return p, fmt.Errorf("%w: unexpected length %d", ErrInvalidPublicKey, len(raw))
	}
}

// GetPublicKeyEncoded returns the compressed hex encoding of a public key
// given in either SEC1 form.
func GetPublicKeyEncoded(s string) (string, error) {
	p, err := ParsePublicKey(s)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// String returns the compressed key as lowercase hex.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// compress converts an uncompressed SEC1 point (0x04 || X || Y).
func compress(uncompressed []byte) PublicKey {
	var p PublicKey
	p[0] = compressedEvenPrefix
	if uncompressed[len(uncompressed)-1]&1 == 1 {
		p[0] = compressedOddPrefix
	}
	copy(p[1:], uncompressed[1:1+PrivateKeySize])
	return p
}
