// Package wallet implements the key encodings used to log into the bridge.
//
// Contents
//
//   - Private keys on secp256r1 in raw hex and WIF form (ParsePrivateKey,
//     ParseWIF, ParseKey)
//   - Compressed public keys and their verification-script addresses
//     (ParsePublicKey, GetPublicKeyEncoded, PublicKey.Address)
//   - NEP-2 passphrase protected keys (IsNEP2, EncryptNEP2, DecryptNEP2)
//
// # Notes
//
// Every function here is pure. Buffers holding decrypted key material are
// wiped before returning; callers that keep a PrivateKey should call Wipe
// when they are done with it.
package wallet
