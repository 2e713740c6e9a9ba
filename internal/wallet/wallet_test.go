package wallet_test

import (
	"errors"
	"strings"
	"testing"

	"dappbridge/internal/wallet"
)

// Reference account from the NEP-2 proposal.
const (
	refKeyHex     = "cbf4b9f70470856bb4f40f80b87edb90865997ffee6df315ab166d713af433a5"
	refWIF        = "L44B5gGEpqEDRS9vVPz7QT35jcBG2r3CZwSwQ4fCewXAhAhqGVpP"
	refAddress    = "AStZHy8E6StCqYQbzMqi4poH7YNDHQKxvt"
	refNEP2       = "6PYVPVe1fQznphjbUxXP9KZJqPMVnVwCx5s5pr5axRJ8uHkMtZg97eT5kL"
	refPassphrase = "TestingOneTwoThree"
)

func TestParseWIF_MatchesHex(t *testing.T) {
	fromWIF, err := wallet.ParseWIF(refWIF)
	if err != nil {
		t.Fatalf("ParseWIF: %v", err)
	}
	fromHex, err := wallet.ParsePrivateKey(refKeyHex)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if fromWIF != fromHex {
		t.Fatalf("WIF and hex decode to different keys")
	}
	if got := fromHex.WIF(); got != refWIF {
		t.Fatalf("WIF() = %q, want %q", got, refWIF)
	}
	if got := fromWIF.Hex(); got != refKeyHex {
		t.Fatalf("Hex() = %q, want %q", got, refKeyHex)
	}
}

func TestAddress_Reference(t *testing.T) {
	k, err := wallet.ParseKey(refWIF)
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if got := k.Address(); got != refAddress {
		t.Fatalf("Address() = %q, want %q", got, refAddress)
	}
	if !wallet.IsAddress(refAddress) {
		t.Fatalf("IsAddress(%q) = false", refAddress)
	}
}

func TestParseKey_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"garbage":      "not a key",
		"short hex":    "abcd",
		"zero scalar":  strings.Repeat("0", 64),
		"order scalar": "ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551",
		"bad checksum": refWIF[:len(refWIF)-1] + "Q",
		"address":      refAddress,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := wallet.ParseKey(in); !errors.Is(err, wallet.ErrInvalidKey) {
				t.Fatalf("ParseKey(%q) err = %v, want ErrInvalidKey", in, err)
			}
			if wallet.IsWIF(in) || wallet.IsPrivateKey(in) {
				t.Fatalf("%q accepted as a key", in)
			}
		})
	}
}

func TestPublicKey_Encoding(t *testing.T) {
	k, err := wallet.ParsePrivateKey(refKeyHex)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub := k.PublicKey()
	if pub[0] != 0x02 && pub[0] != 0x03 {
		t.Fatalf("public key prefix = %#x, want compressed", pub[0])
	}

	encoded, err := wallet.GetPublicKeyEncoded(pub.String())
	if err != nil {
		t.Fatalf("GetPublicKeyEncoded: %v", err)
	}
	if encoded != pub.String() {
		t.Fatalf("compressed key not returned unchanged")
	}

	parsed, err := wallet.ParsePublicKey(encoded)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if parsed.Address() != refAddress {
		t.Fatalf("address from public key = %q, want %q", parsed.Address(), refAddress)
	}
}

func TestParsePublicKey_Rejects(t *testing.T) {
	for _, in := range []string{"", "zz", "02" + strings.Repeat("00", 31), "05" + strings.Repeat("11", 32)} {
		if _, err := wallet.ParsePublicKey(in); !errors.Is(err, wallet.ErrInvalidPublicKey) {
			t.Fatalf("ParsePublicKey(%q) err = %v, want ErrInvalidPublicKey", in, err)
		}
	}
}

func TestScriptHash_Deterministic(t *testing.T) {
	k, _ := wallet.ParsePrivateKey(refKeyHex)
	a := k.PublicKey().ScriptHash()
	b := wallet.HashScript(wallet.VerificationScript(k.PublicKey()))
	if a != b {
		t.Fatalf("script hash differs between derivations")
	}
	if a.Address() != refAddress {
		t.Fatalf("script hash address = %q, want %q", a.Address(), refAddress)
	}
}
