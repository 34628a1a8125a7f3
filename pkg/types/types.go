package types

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SignatureLength is the length of the r || s || v encoding.
const SignatureLength = 65

// Signature is a secp256k1 signature triple over a 32-byte digest.
// V carries the Ethereum convention (27 or 28) for real signatures and 0 for the sentinel.
type Signature struct {
	R common.Hash
	S common.Hash
	V uint8
}

// SentinelSignature returns the all-zero placeholder meaning no signature is attached.
func SentinelSignature() *Signature {
	return &Signature{}
}

// IsSentinel reports whether the signature is the all-zero placeholder.
func (s *Signature) IsSentinel() bool {
	return s.V == 0 && s.R == (common.Hash{}) && s.S == (common.Hash{})
}

// Bytes returns r || s || v.
func (s *Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// RecoveryId returns V normalized to 0 or 1.
func (s *Signature) RecoveryId() (byte, error) {
	switch s.V {
	case 0, 1:
		return s.V, nil
	case 27, 28:
		return s.V - 27, nil
	default:
		return 0, fmt.Errorf("invalid signature v value %d", s.V)
	}
}

func (s *Signature) String() string {
	return hexutil.Encode(s.Bytes())
}

// SignatureFromBytes parses r || s || v. V may be 0/1 or 27/28; 0/1 is shifted to 27/28
// unless r and s are both zero, which yields the sentinel.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(b))
	}
	sig := &Signature{
		R: common.BytesToHash(b[0:32]),
		S: common.BytesToHash(b[32:64]),
		V: b[64],
	}
	if sig.R == (common.Hash{}) && sig.S == (common.Hash{}) {
		if sig.V != 0 {
			return nil, fmt.Errorf("zero signature must have v = 0, got %d", sig.V)
		}
		return sig, nil
	}
	switch sig.V {
	case 0, 1:
		sig.V += 27
	case 27, 28:
	default:
		return nil, fmt.Errorf("invalid signature v value %d", sig.V)
	}
	return sig, nil
}

type signatureJSON struct {
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
	V uint8       `json:"v"`
}

func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{R: s.R, S: s.S, V: s.V})
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.R, s.S, s.V = raw.R, raw.S, raw.V
	return nil
}
