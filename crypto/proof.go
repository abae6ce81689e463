package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidProof is returned when a signature cannot be recovered.
var ErrInvalidProof = errors.New("crypto: invalid authorization proof")

// CallDigest binds an authorization proof to one method invocation on one
// network. nonce is the signer's next proof nonce, so a digest is only ever
// accepted once.
func CallDigest(network, method string, nonce uint64, params []byte) []byte {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], nonce)
	return crypto.Keccak256([]byte(network), []byte{0}, []byte(method), []byte{0}, seq[:], params)
}

// SignProof produces a recoverable secp256k1 signature over digest.
func SignProof(key *PrivateKey, digest []byte) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(digest, key.PrivateKey)
}

// RecoverSigner returns the identity that produced sig over digest.
func RecoverSigner(digest, sig []byte) (Identity, error) {
	var id Identity
	if len(sig) != crypto.SignatureLength {
		return id, fmt.Errorf("%w: signature must be %d bytes", ErrInvalidProof, crypto.SignatureLength)
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return Identity(crypto.PubkeyToAddress(*pub)), nil
}
