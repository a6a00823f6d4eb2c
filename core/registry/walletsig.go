// Copyright 2021 The go-sentinet Authors
// This file is part of the go-sentinet library.
//
// The go-sentinet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-sentinet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-sentinet library. If not, see <http://www.gnu.org/licenses/>.

package registry

import (
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/crypto"

	lru "github.com/hashicorp/golang-lru"
)

// SignatureValidator resolves signatures that cannot be checked by plain key
// recovery, typically because the signing account is a contract wallet. An
// implementation accepts by returning the 0x1626ba7e magic value.
type SignatureValidator interface {
	IsValidSignature(account common.Address, digest common.Hash, sig []byte) ([4]byte, error)
}

// magicValue is the acceptance marker a delegated validator must return.
var magicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

var (
	domainTypeHash  = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	bindingTypeHash = crypto.Keccak256Hash([]byte("AgentWalletBinding(uint256 agentId,address newWallet,address currentOwner,uint256 deadline)"))
)

// Number of recovered signers to keep around. Bindings are rare, this mostly
// absorbs retried submissions of the same signature.
const sigCacheSize = 1024

// WalletVerifier checks wallet binding consents against the deployment's
// typed data domain. A binding is accepted when the claimed wallet either
// produced a recoverable secp256k1 signature over the binding digest or
// approves it through the delegated validator.
type WalletVerifier struct {
	domain    common.Hash
	validator SignatureValidator
	sigCache  *lru.Cache // digest+sig -> recovered signer
}

func newWalletVerifier(config *Config, validator SignatureValidator) *WalletVerifier {
	cache, _ := lru.New(sigCacheSize)
	return &WalletVerifier{
		domain:    hashDomain(config),
		validator: validator,
		sigCache:  cache,
	}
}

// hashDomain derives the domain separator binding signatures to this chain
// and registry deployment.
func hashDomain(config *Config) common.Hash {
	return crypto.Keccak256Hash(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(config.DomainName)),
		crypto.Keccak256([]byte(config.DomainVersion)),
		common.BigToHash(config.ChainID).Bytes(),
		config.Address.Hash().Bytes(),
	)
}

// DomainSeparator returns the typed data domain separator of this deployment.
func (v *WalletVerifier) DomainSeparator() common.Hash {
	return v.domain
}

// BindingDigest computes the digest a wallet signs to consent to being bound
// to an agent identity.
func (v *WalletVerifier) BindingDigest(id types.AgentID, newWallet, currentOwner common.Address, deadline uint64) common.Hash {
	structHash := crypto.Keccak256Hash(
		bindingTypeHash.Bytes(),
		common.BigToHash(new(big.Int).SetUint64(uint64(id))).Bytes(),
		newWallet.Hash().Bytes(),
		currentOwner.Hash().Bytes(),
		common.BigToHash(new(big.Int).SetUint64(deadline)).Bytes(),
	)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, v.domain.Bytes(), structHash.Bytes())
}

// Verify reports whether sig is acceptable consent from signer over digest.
// Recovery is tried first for 65 byte signatures, everything else falls
// through to the delegated validator when one is wired. Malformed input is
// simply invalid, never an error.
func (v *WalletVerifier) Verify(signer common.Address, digest common.Hash, sig []byte) bool {
	if len(sig) == crypto.SignatureLength {
		if recovered, ok := v.recoverSigner(digest, sig); ok && recovered == signer {
			return true
		}
	}
	if v.validator == nil {
		return false
	}
	magic, err := v.validator.IsValidSignature(signer, digest, sig)
	return err == nil && magic == magicValue
}

// recoverSigner runs ecrecover over the digest, memoizing the result. The
// boolean is false when the signature does not recover at all.
func (v *WalletVerifier) recoverSigner(digest common.Hash, sig []byte) (common.Address, bool) {
	key := string(append(digest.Bytes(), sig...))
	if cached, ok := v.sigCache.Get(key); ok {
		signer := cached.(common.Address)
		return signer, signer != (common.Address{})
	}
	var signer common.Address
	if pub, err := crypto.SigToPub(digest.Bytes(), normalizeV(sig)); err == nil {
		signer = crypto.PubkeyToAddress(*pub)
	}
	v.sigCache.Add(key, signer)
	return signer, signer != (common.Address{})
}

// normalizeV maps the transaction style 27/28 recovery ids down to the 0/1
// expected by the recovery code.
func normalizeV(sig []byte) []byte {
	if sig[crypto.RecoveryIDOffset] < 27 {
		return sig
	}
	fixed := make([]byte, len(sig))
	copy(fixed, sig)
	fixed[crypto.RecoveryIDOffset] -= 27
	return fixed
}
