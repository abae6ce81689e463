package host

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"vaultix/core/state"
	"vaultix/crypto"
	"vaultix/native/escrow"
)

var (
	// ErrProofMissing is returned when an operation needs an identity the
	// caller did not prove control of.
	ErrProofMissing = errors.New("host: proof missing")
	// ErrStaleNonce is returned when a signed proof does not carry the
	// signer's next nonce, for example because the request was replayed.
	ErrStaleNonce = errors.New("host: proof nonce mismatch")
)

var noncePrefix = []byte("host/nonce/")

// ProofSet is the set of identities whose control the caller demonstrated
// for the current call.
type ProofSet map[[20]byte]struct{}

// NewProofSet returns a proof set containing ids.
func NewProofSet(ids ...[20]byte) ProofSet {
	set := make(ProofSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// RequireProof implements escrow.AuthProvider.
func (p ProofSet) RequireProof(id [20]byte) error {
	if _, ok := p[id]; ok {
		return nil
	}
	return fmt.Errorf("%w for %s", ErrProofMissing, crypto.FormatIdentity(id))
}

// AllowAll accepts every proof request. It is meant for tests and trusted
// embedding.
type AllowAll struct{}

// RequireProof implements escrow.AuthProvider.
func (AllowAll) RequireProof([20]byte) error { return nil }

// Signature is one client proof: a recoverable signature over the call digest
// for the signer's nonce.
type Signature struct {
	Nonce uint64
	Sig   []byte
}

// SignedProofs is a proof set recovered from client signatures. When a
// mutating call runs, every signer's nonce must match state and is then
// advanced, whether or not the operation itself succeeds.
type SignedProofs struct {
	ProofSet
	nonces map[[20]byte]uint64
}

// Nonce returns the nonce signer signed with.
func (p *SignedProofs) Nonce(signer [20]byte) (uint64, bool) {
	nonce, ok := p.nonces[signer]
	return nonce, ok
}

// ProofsFromSignatures recovers the signer of each signature over the call
// digest of network, method, nonce and params. A signer may appear once.
func ProofsFromSignatures(network, method string, params []byte, sigs []Signature) (*SignedProofs, error) {
	out := &SignedProofs{
		ProofSet: make(ProofSet, len(sigs)),
		nonces:   make(map[[20]byte]uint64, len(sigs)),
	}
	for i, sig := range sigs {
		signer, err := crypto.RecoverSigner(crypto.CallDigest(network, method, sig.Nonce, params), sig.Sig)
		if err != nil {
			return nil, fmt.Errorf("host: proof %d: %w", i, err)
		}
		if _, dup := out.nonces[signer]; dup {
			return nil, fmt.Errorf("host: proof %d: duplicate signer %s", i, crypto.FormatIdentity(signer))
		}
		out.ProofSet[signer] = struct{}{}
		out.nonces[signer] = sig.Nonce
	}
	return out, nil
}

func nonceKey(id [20]byte) []byte {
	key := make([]byte, 0, len(noncePrefix)+len(id))
	key = append(key, noncePrefix...)
	return append(key, id[:]...)
}

func loadNonce(txn *state.Txn, id [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := txn.Get(nonceKey(id), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// consume checks every signer's nonce against txn and stages the increment.
func (p *SignedProofs) consume(txn *state.Txn) error {
	signers := make([][20]byte, 0, len(p.nonces))
	for id := range p.nonces {
		signers = append(signers, id)
	}
	sort.Slice(signers, func(i, j int) bool { return bytes.Compare(signers[i][:], signers[j][:]) < 0 })

	for _, id := range signers {
		stored, err := loadNonce(txn, id)
		if err != nil {
			return err
		}
		if claimed := p.nonces[id]; claimed != stored {
			return fmt.Errorf("%w: %s: %w: signed %d, expected %d",
				escrow.ErrAuthorization, crypto.FormatIdentity(id), ErrStaleNonce, claimed, stored)
		}
		if err := txn.Set(nonceKey(id), stored+1); err != nil {
			return err
		}
	}
	return nil
}
