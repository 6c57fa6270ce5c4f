// Package sigverify implements the typed-data hashing and signer recovery used
// by the delegate-by-signature and vote-by-signature entry points. Everything
// in this package is a pure function of its inputs.
package sigverify

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
)

// SignatureLength is the size of an [R || S || V] signature.
const SignatureLength = 65

var (
	domainTypeHash     = ethcrypto.Keccak256Hash([]byte("EIP712Domain(string name,uint256 chainId,address verifyingContract)"))
	delegationTypeHash = ethcrypto.Keccak256Hash([]byte("Delegation(address delegatee,uint256 nonce,uint256 expiry)"))
	ballotTypeHash     = ethcrypto.Keccak256Hash([]byte("Ballot(uint256 proposalId,bool support)"))
)

// Domain binds signatures to one deployment: the protocol name, the chain
// identifier and the address of the verifying component.
type Domain struct {
	Name              string
	ChainID           *uint256.Int
	VerifyingContract common.Address
}

// Separator returns the domain separator hash.
func (d Domain) Separator() common.Hash {
	return ethcrypto.Keccak256Hash(
		domainTypeHash[:],
		ethcrypto.Keccak256([]byte(d.Name)),
		word(d.ChainID),
		common.LeftPadBytes(d.VerifyingContract.Bytes(), 32),
	)
}

// DelegationHash returns the struct hash of a Delegation authorisation.
func DelegationHash(delegatee common.Address, nonce uint64, expiry uint64) common.Hash {
	return ethcrypto.Keccak256Hash(
		delegationTypeHash[:],
		common.LeftPadBytes(delegatee.Bytes(), 32),
		word(uint256.NewInt(nonce)),
		word(uint256.NewInt(expiry)),
	)
}

// BallotHash returns the struct hash of a Ballot authorisation.
func BallotHash(proposalID uint64, support bool) common.Hash {
	flag := uint256.NewInt(0)
	if support {
		flag.SetOne()
	}
	return ethcrypto.Keccak256Hash(
		ballotTypeHash[:],
		word(uint256.NewInt(proposalID)),
		word(flag),
	)
}

// Digest combines the domain separator and a struct hash into the message
// that is actually signed.
func Digest(domain Domain, structHash common.Hash) common.Hash {
	separator := domain.Separator()
	return ethcrypto.Keccak256Hash([]byte{0x19, 0x01}, separator[:], structHash[:])
}

// DelegationDigest is a convenience wrapper around Digest and DelegationHash.
func DelegationDigest(domain Domain, delegatee common.Address, nonce uint64, expiry uint64) common.Hash {
	return Digest(domain, DelegationHash(delegatee, nonce, expiry))
}

// BallotDigest is a convenience wrapper around Digest and BallotHash.
func BallotDigest(domain Domain, proposalID uint64, support bool) common.Hash {
	return Digest(domain, BallotHash(proposalID, support))
}

// Recover returns the address that produced sig over digest. The signature
// must be 65 bytes with a recovery id of 0, 1, 27 or 28 and a low S value.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("sigverify: signature must be %d bytes: %w", SignatureLength, coreerrors.ErrInvalidSignature)
	}
	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("sigverify: invalid recovery id %d: %w", sig[64], coreerrors.ErrInvalidSignature)
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("sigverify: malformed signature values: %w", coreerrors.ErrInvalidSignature)
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	normalized[64] = v
	pub, err := ethcrypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("sigverify: recover: %v: %w", err, coreerrors.ErrInvalidSignature)
	}
	signer := ethcrypto.PubkeyToAddress(*pub)
	if signer == (common.Address{}) {
		return common.Address{}, fmt.Errorf("sigverify: zero signer: %w", coreerrors.ErrInvalidSignature)
	}
	return signer, nil
}

// Sign produces an [R || S || V] signature over digest with V in {27, 28}.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("sigverify: private key required")
	}
	sig, err := ethcrypto.Sign(digest[:], key)
	if err != nil {
		return nil, fmt.Errorf("sigverify: sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignDelegation signs a Delegation authorisation for the given domain.
func SignDelegation(domain Domain, key *ecdsa.PrivateKey, delegatee common.Address, nonce uint64, expiry uint64) ([]byte, error) {
	return Sign(DelegationDigest(domain, delegatee, nonce, expiry), key)
}

// SignBallot signs a Ballot authorisation for the given domain.
func SignBallot(domain Domain, key *ecdsa.PrivateKey, proposalID uint64, support bool) ([]byte, error) {
	return Sign(BallotDigest(domain, proposalID, support), key)
}

func word(value *uint256.Int) []byte {
	if value == nil {
		value = new(uint256.Int)
	}
	out := value.Bytes32()
	return out[:]
}
