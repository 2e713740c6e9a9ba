package wallet

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

const checksumLen = 4

var errChecksum = errors.New("base58 checksum mismatch")

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// checkEncode appends a double-SHA256 checksum to payload and base58 encodes it.
func checkEncode(payload []byte) string {
	buf := make([]byte, 0, len(payload)+checksumLen)
	buf = append(buf, payload...)
	buf = append(buf, doubleSHA256(payload)[:checksumLen]...)
	return base58.Encode(buf)
}

// checkDecode reverses checkEncode and returns the payload without checksum.
func checkDecode(s string) ([]byte, error) {
	raw := base58.Decode(s)
	if len(raw) <= checksumLen {
		return nil, errChecksum
	}
	payload, sum := raw[:len(raw)-checksumLen], raw[len(raw)-checksumLen:]
	if !bytes.Equal(doubleSHA256(payload)[:checksumLen], sum) {
		return nil, errChecksum
	}
	return payload, nil
}
