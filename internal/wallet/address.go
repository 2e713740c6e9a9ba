package wallet

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160"
)

const (
	// AddressVersion is the leading byte of every account address.
	AddressVersion = 0x17
	ScriptHashSize = 20

	opPushBytes33 = 0x21
	opCheckSig    = 0xac
)

// ScriptHash identifies an account contract.
type ScriptHash [ScriptHashSize]byte

// VerificationScript returns the single-signature contract for p.
func VerificationScript(p PublicKey) []byte {
	script := make([]byte, 0, PublicKeySize+2)
	script = append(script, opPushBytes33)
	script = append(script, p[:]...)
	return append(script, opCheckSig)
}

// HashScript computes RIPEMD160(SHA256(script)).
func HashScript(script []byte) ScriptHash {
	sum := sha256.Sum256(script)
	h := ripemd160.New()
	h.Write(sum[:])
	var out ScriptHash
	copy(out[:], h.Sum(nil))
	return out
}

// ScriptHash returns the script hash of p's verification script.
func (p PublicKey) ScriptHash() ScriptHash {
	return HashScript(VerificationScript(p))
}

// Address returns the base58check address of p.
func (p PublicKey) Address() string {
	return p.ScriptHash().Address()
}

// Address encodes h as a base58check address.
func (h ScriptHash) Address() string {
	payload := make([]byte, 0, 1+ScriptHashSize)
	payload = append(payload, AddressVersion)
	payload = append(payload, h[:]...)
	return checkEncode(payload)
}

// String returns h as hex in byte order.
func (h ScriptHash) String() string {
	return hex.EncodeToString(h[:])
}

// IsAddress reports whether s decodes to a versioned script hash.
func IsAddress(s string) bool {
	payload, err := checkDecode(s)
	return err == nil && len(payload) == 1+ScriptHashSize && payload[0] == AddressVersion
}
