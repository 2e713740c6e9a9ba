// Package auth resolves login credentials into a signing identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"dappbridge/internal/wallet"
)

// MinPassphraseLength is the shortest passphrase accepted for an encrypted key.
const MinPassphraseLength = 4

var (
	// ErrInvalidCredential is returned for malformed keys or encrypted keys.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrPassphraseTooShort is returned when the passphrase is below MinPassphraseLength.
	ErrPassphraseTooShort = fmt.Errorf("passphrase is too short (must be at least %d characters)", MinPassphraseLength)
	// ErrDecryptionFailed is returned for a wrong passphrase or corrupt ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidLoginAttempt is returned when no recognized credential is present.
	ErrInvalidLoginAttempt = errors.New("invalid login attempt")
)

// Signer is a signing capability held outside the host process, such as a
// hardware device. The resolver only carries it; it never calls Sign.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// Credentials holds one of the three login shapes. Fields are checked in
// declaration order and the first non-empty shape wins.
type Credentials struct {
	WIF          string `json:"wif,omitempty"`
	Passphrase   string `json:"passphrase,omitempty"`
	EncryptedWIF string `json:"encrypted_wif,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`
	Signer       Signer `json:"-"`
}

// Kind names the login method that produced an Account.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindEncrypted Kind = "encrypted"
	KindExternal  Kind = "external"
)

// Account is a resolved identity. Either WIF is set, or PublicKey is set and
// Signer is the (possibly nil) capability of the external signer.
type Account struct {
	Address   string
	WIF       string
	PublicKey string
	Signer    Signer
	kind      Kind
}

// Kind reports how the account was resolved.
func (a Account) Kind() Kind {
	return a.kind
}

// External reports whether signing happens outside the host process.
func (a Account) External() bool {
	return a.kind == KindExternal
}

// PublicAccount is the view of an Account that may leave the host process.
type PublicAccount struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key,omitempty"`
	Kind      Kind   `json:"kind"`
}

// Public strips secret material from a.
func (a Account) Public() PublicAccount {
	pub := PublicAccount{Address: a.Address, PublicKey: a.PublicKey, Kind: a.kind}
	if pub.PublicKey == "" && a.WIF != "" {
		if k, err := wallet.ParseWIF(a.WIF); err == nil {
			pub.PublicKey = k.PublicKey().String()
			k.Wipe()
		}
	}
	return pub
}

// Authenticate validates c and returns the account it identifies.
func Authenticate(c Credentials) (Account, error) {
	switch {
	case c.WIF != "":
		return wifAuthenticate(c.WIF)
	case c.Passphrase != "" || c.EncryptedWIF != "":
		return nep2Authenticate(c.Passphrase, c.EncryptedWIF)
	case c.PublicKey != "":
		return externalAuthenticate(c.PublicKey, c.Signer)
	default:
		return Account{}, ErrInvalidLoginAttempt
	}
}

func wifAuthenticate(wif string) (Account, error) {
	if !wallet.IsWIF(wif) && !wallet.IsPrivateKey(wif) {
		return Account{}, fmt.Errorf("%w: not a valid private key", ErrInvalidCredential)
	}
	k, err := wallet.ParseKey(wif)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	defer k.Wipe()
	return Account{Address: k.Address(), WIF: k.WIF(), kind: KindDirect}, nil
}

func nep2Authenticate(passphrase, encryptedWIF string) (Account, error) {
	if utf8.RuneCountInString(passphrase) < MinPassphraseLength {
		return Account{}, ErrPassphraseTooShort
	}
	if !wallet.IsNEP2(encryptedWIF) {
		return Account{}, fmt.Errorf("%w: not a valid encrypted key", ErrInvalidCredential)
	}
	k, err := wallet.DecryptNEP2(encryptedWIF, passphrase)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	defer k.Wipe()
	return Account{Address: k.Address(), WIF: k.WIF(), kind: KindEncrypted}, nil
}

func externalAuthenticate(publicKey string, signer Signer) (Account, error) {
	p, err := wallet.ParsePublicKey(publicKey)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return Account{
		Address:   p.Address(),
		PublicKey: p.String(),
		Signer:    signer,
		kind:      KindExternal,
	}, nil
}
