package typedData

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/require"
)

func bentoBoxDomain() DomainDescriptor {
	return NewDomainDescriptor(31337, bentoBoxContract, WithName("BentoBox V2"))
}

func Test_DomainDescriptor_TypeSignature(t *testing.T) {
	cases := []struct {
		name     string
		domain   DomainDescriptor
		expected string
		typeHash string
	}{
		{
			name:     "chain and contract only",
			domain:   NewDomainDescriptor(1, beefContract),
			expected: "EIP712Domain(uint256 chainId,address verifyingContract)",
			typeHash: "0x47e79534a245952e8b16893a336b85a3d9ea9fa8c573f3d803afb92a79469218",
		},
		{
			name:     "with name",
			domain:   bentoBoxDomain(),
			expected: "EIP712Domain(string name,uint256 chainId,address verifyingContract)",
			typeHash: "0x8cad95687ba82c2ce50e74f7b754645e5117c3a5bec8151c0726d5857980a866",
		},
		{
			name:     "with name and version",
			domain:   NewDomainDescriptor(1, beefContract, WithName("Token"), WithVersion("1")),
			expected: "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
			typeHash: "0x8b73c3c69bb8fe3d512ecc4cf759cc79239f7b179b0ffacaa9a75d522b39400f",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.domain.TypeSignature())
			require.Equal(t, common.HexToHash(tc.typeHash), tc.domain.TypeHash())
			require.Equal(t, legacyKeccak([]byte(tc.expected)), tc.domain.TypeHash())
		})
	}

	t.Run("Variants are not interchangeable", func(t *testing.T) {
		bare := NewDomainDescriptor(31337, bentoBoxContract)
		require.NotEqual(t, DomainSeparator(bare), DomainSeparator(bentoBoxDomain()))

		empty := NewDomainDescriptor(31337, bentoBoxContract, WithName(""))
		require.NotEqual(t, DomainSeparator(bare), DomainSeparator(empty))
	})
}

func Test_PermitDigest_PinnedVector(t *testing.T) {
	domain := NewDomainDescriptor(1, beefContract)
	msg := mustPermit(aliceAddress, bobAddress, 1000, 0, 100000)

	domainSep := DomainSeparator(domain)
	require.Equal(t, common.HexToHash("0xa1812b03278c24f04378ac135bd78feee522b1774c4abe1549053c6e68a5a988"), domainSep)

	msgHash := MessageDigest(msg)
	require.Equal(t, common.HexToHash("0xa57e13b4d998d2eef8499b52a7ff7a8c28ebc831fbdc9cbcdb4d1660d7b5c6ed"), msgHash)

	digest := SigningDigest(domainSep, msgHash)
	require.Equal(t, common.HexToHash("0x4b5a10dfd2695b334402ab9776b52ac3ca4d890bdb78948e49e7a691722ffeaa"), digest)
	require.Equal(t, digest, HashTypedData(domain, msg))

	preimage := SigningPreimage(domainSep, msgHash)
	require.Len(t, preimage, 66)
	require.Equal(t, []byte{0x19, 0x01}, preimage[:2])
	require.Equal(t, domainSep.Bytes(), preimage[2:34])
	require.Equal(t, msgHash.Bytes(), preimage[34:])
}

func Test_MasterApprovalDigest_PinnedVector(t *testing.T) {
	domainSep := DomainSeparator(bentoBoxDomain())
	require.Equal(t, common.HexToHash("0x8f0fcba484ed66136ab4efe751b18ecab1657002fadab55f19a08d28cd344bc7"), domainSep)

	t.Run("Approve", func(t *testing.T) {
		msgHash := MessageDigest(mustMasterApproval(aliceAddress, true, 0))
		require.Equal(t, common.HexToHash("0x538ef8d3829b1103681331fc2088afbc2b5af3ebf89d73eafc00732cc7022a74"), msgHash)
		require.Equal(t,
			common.HexToHash("0x0bde38ffc896ad96b6e981d1b327f94d1e103d044a6caf9bba1deaaf826cc421"),
			SigningDigest(domainSep, msgHash),
		)
	})

	t.Run("Revoke", func(t *testing.T) {
		msgHash := MessageDigest(mustMasterApproval(aliceAddress, false, 3))
		require.Equal(t, common.HexToHash("0x1e3b053f795dda4520393958f78f2a83d7542897bbcc8a7c7b7df4c753500678"), msgHash)
		require.Equal(t,
			common.HexToHash("0x835118e661c0ea5ee94055abd527f9f59ca1bf358cc49f8cf8410a46fa77d181"),
			SigningDigest(domainSep, msgHash),
		)
	})
}

// apitypesHash recomputes the signing digest with go-ethereum's independent implementation.
func apitypesHash(t *testing.T, d DomainDescriptor, m *StructuredMessage) common.Hash {
	t.Helper()

	domainTypes := make([]apitypes.Type, 0, 4)
	domain := apitypes.TypedDataDomain{
		ChainId:           (*math.HexOrDecimal256)(d.ChainId.ToBig()),
		VerifyingContract: d.VerifyingContract.Hex(),
	}
	if d.Name != nil {
		domainTypes = append(domainTypes, apitypes.Type{Name: "name", Type: "string"})
		domain.Name = *d.Name
	}
	if d.Version != nil {
		domainTypes = append(domainTypes, apitypes.Type{Name: "version", Type: "string"})
		domain.Version = *d.Version
	}
	domainTypes = append(domainTypes,
		apitypes.Type{Name: "chainId", Type: "uint256"},
		apitypes.Type{Name: "verifyingContract", Type: "address"},
	)

	msgTypes := make([]apitypes.Type, 0, len(m.Fields))
	message := apitypes.TypedDataMessage{}
	for _, f := range m.Fields {
		msgTypes = append(msgTypes, apitypes.Type{Name: f.Name, Type: f.Value.TypeName()})
		switch f.Value.Kind() {
		case KindAddress:
			message[f.Name] = f.Value.addr.Hex()
		case KindUint256:
			message[f.Name] = f.Value.num.ToBig()
		case KindBool:
			message[f.Name] = f.Value.flag
		case KindString:
			message[f.Name] = f.Value.str
		default:
			t.Fatalf("unsupported cross-check kind %s", f.Value.Kind())
		}
	}

	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainTypes,
			m.Type().Name:  msgTypes,
		},
		PrimaryType: m.Type().Name,
		Domain:      domain,
		Message:     message,
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)
	return common.BytesToHash(hash)
}

func Test_HashTypedData_MatchesApitypes(t *testing.T) {
	cases := []struct {
		name   string
		domain DomainDescriptor
		msg    *StructuredMessage
	}{
		{"permit", NewDomainDescriptor(1, beefContract), mustPermit(aliceAddress, bobAddress, 1000, 0, 100000)},
		{"permit large values", NewDomainDescriptor(11155111, bentoBoxContract), mustPermit(bobAddress, aliceAddress, 1<<63, 42, 1<<40)},
		{"master approval", bentoBoxDomain(), mustMasterApproval(aliceAddress, true, 0)},
		{"master revoke", bentoBoxDomain(), mustMasterApproval(bobAddress, false, 7)},
		{"named and versioned", NewDomainDescriptor(1, beefContract, WithName("Token"), WithVersion("1")), mustPermit(aliceAddress, bobAddress, 5, 1, 2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, apitypesHash(t, tc.domain, tc.msg), HashTypedData(tc.domain, tc.msg))
		})
	}
}

func Test_DomainSeparator_Properties(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		d := bentoBoxDomain()
		require.Equal(t, DomainSeparator(d), DomainSeparator(d))
		require.Equal(t, DomainSeparator(d), DomainSeparator(bentoBoxDomain()))
	})

	t.Run("Changing chain id or contract changes the separator", func(t *testing.T) {
		seen := map[common.Hash]string{}
		for _, chainId := range []uint64{1, 5, 137, 31337, 11155111} {
			for _, contract := range []common.Address{beefContract, bentoBoxContract, masterContract} {
				sep := DomainSeparator(NewDomainDescriptor(chainId, contract, WithName("BentoBox V2")))
				label := fmt.Sprintf("%d/%s", chainId, contract.Hex())
				prev, dup := seen[sep]
				require.False(t, dup, "collision between %s and %s", prev, label)
				seen[sep] = label
			}
		}
	})
}

func Test_MessageDigest_FieldOrder(t *testing.T) {
	t.Run("Swapping owner and spender changes the digest", func(t *testing.T) {
		swapped := MessageDigest(mustPermit(bobAddress, aliceAddress, 1000, 0, 100000))
		require.Equal(t, common.HexToHash("0x5bd9b190d502b0385c6bf1bf76f06ba4148a009720f26332c24ea5d9b68b18f8"), swapped)
		require.NotEqual(t, MessageDigest(mustPermit(aliceAddress, bobAddress, 1000, 0, 100000)), swapped)
	})

	t.Run("Swapping nonce and deadline changes the digest", func(t *testing.T) {
		a := MessageDigest(mustPermit(aliceAddress, bobAddress, 1000, 3, 9))
		b := MessageDigest(mustPermit(aliceAddress, bobAddress, 1000, 9, 3))
		require.NotEqual(t, a, b)
	})

	t.Run("Approved flag changes the digest", func(t *testing.T) {
		require.NotEqual(t,
			MessageDigest(mustMasterApproval(aliceAddress, true, 0)),
			MessageDigest(mustMasterApproval(aliceAddress, false, 0)),
		)
	})
}

func FuzzMessageDigest_Deterministic(f *testing.F) {
	f.Add([]byte("owner-seed-00000000000"), []byte("spender-seed-000000000"), uint64(1000), uint64(0), uint64(100000))
	f.Add([]byte{}, []byte{1}, uint64(0), uint64(1), uint64(1<<62))

	f.Fuzz(func(t *testing.T, ownerSeed, spenderSeed []byte, value, nonce, deadline uint64) {
		owner := common.BytesToAddress(ownerSeed)
		spender := common.BytesToAddress(spenderSeed)

		m1 := mustPermit(owner, spender, value, nonce, deadline)
		m2 := mustPermit(owner, spender, value, nonce, deadline)
		require.Equal(t, EncodeMessage(m1), EncodeMessage(m2))
		require.Equal(t, MessageDigest(m1), MessageDigest(m2))
		require.Len(t, EncodeMessage(m1), SlotSize*6)

		if owner != spender {
			require.NotEqual(t, MessageDigest(m1), MessageDigest(mustPermit(spender, owner, value, nonce, deadline)))
		}
	})
}
