package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair is the operator's Solana signing key.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// KeypairFromBase58 decodes a base58 secret key. Both the 64-byte
// secret+public form exported by wallets and a bare 32-byte seed are
// accepted.
func KeypairFromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("solana: decode private key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	default:
		return nil, fmt.Errorf("solana: unexpected private key length %d", len(raw))
	}

	return &Keypair{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// PublicKey returns the base58 public key.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.pub)
}

// SignTransactionBase64 signs a serialized (versioned) transaction as
// returned by the swap API: the wire format is a shortvec-prefixed signature
// array followed by the message bytes. The fee payer's slot 0 signature is
// replaced with ours.
func (k *Keypair) SignTransactionBase64(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("solana: decode transaction: %w", err)
	}

	numSigs, offset, err := decodeShortvec(raw)
	if err != nil {
		return "", fmt.Errorf("solana: parse transaction: %w", err)
	}
	if numSigs < 1 {
		return "", fmt.Errorf("solana: transaction has no signature slots")
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if msgStart >= len(raw) {
		return "", fmt.Errorf("solana: transaction truncated")
	}

	sig := ed25519.Sign(k.priv, raw[msgStart:])
	copy(raw[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// decodeShortvec reads Solana's compact-u16 length prefix, returning the
// value and the number of bytes consumed.
func decodeShortvec(b []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("shortvec: truncated")
		}
		value |= int(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("shortvec: too long")
}
