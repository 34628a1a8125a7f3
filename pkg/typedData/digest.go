package typedData

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// signingPrefix is the EIP-191 version byte pair for structured data.
var signingPrefix = []byte{0x19, 0x01}

// DomainSeparator hashes the domain type hash followed by each present domain field.
func DomainSeparator(d DomainDescriptor) common.Hash {
	return MessageDigest(&StructuredMessage{
		TypeHash: d.TypeHash(),
		Fields:   d.Fields(),
	})
}

// MessageDigest hashes the type hash followed by each field's 32-byte slot.
func MessageDigest(m *StructuredMessage) common.Hash {
	return crypto.Keccak256Hash(EncodeMessage(m))
}

// SigningPreimage returns 0x19 0x01 || domainSeparator || messageDigest.
func SigningPreimage(domainSeparator, messageDigest common.Hash) []byte {
	out := make([]byte, 0, len(signingPrefix)+2*common.HashLength)
	out = append(out, signingPrefix...)
	out = append(out, domainSeparator[:]...)
	out = append(out, messageDigest[:]...)
	return out
}

// SigningDigest is the only value that gets signed.
func SigningDigest(domainSeparator, messageDigest common.Hash) common.Hash {
	return crypto.Keccak256Hash(SigningPreimage(domainSeparator, messageDigest))
}

// HashTypedData computes the signing digest of m under d.
func HashTypedData(d DomainDescriptor, m *StructuredMessage) common.Hash {
	return SigningDigest(DomainSeparator(d), MessageDigest(m))
}
