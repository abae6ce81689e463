package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// IdentityPrefix is the human-readable part used when rendering identities.
const IdentityPrefix = "vx"

// Identity is the 20-byte account identifier used for depositors, recipients,
// treasuries and token ledgers alike.
type Identity = [20]byte

// ErrInvalidIdentity marks strings that do not decode to a 20-byte identity.
var ErrInvalidIdentity = errors.New("crypto: invalid identity")

// FormatIdentity renders an identity as a bech32 string.
func FormatIdentity(id Identity) string {
	conv, err := bech32.ConvertBits(id[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(IdentityPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// ParseIdentity decodes a bech32 identity carrying the vx prefix.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(s))
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if prefix != IdentityPrefix {
		return id, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidIdentity, prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if len(conv) != len(id) {
		return id, fmt.Errorf("%w: length %d", ErrInvalidIdentity, len(conv))
	}
	copy(id[:], conv)
	return id, nil
}

// DeriveIdentity hashes a label into a deterministic identity. The host uses
// it for module-owned accounts such as the escrow holding identity.
func DeriveIdentity(label string) Identity {
	var id Identity
	copy(id[:], crypto.Keccak256([]byte(label))[12:])
	return id
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Identity returns the identity controlled by the public key.
func (k *PublicKey) Identity() Identity {
	return Identity(crypto.PubkeyToAddress(*k.PublicKey))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
