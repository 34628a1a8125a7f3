package approvals

import (
	"testing"

	"github.com/Layr-Labs/approval-signer-go/pkg/testutil"
	"github.com/Layr-Labs/approval-signer-go/pkg/typedData"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var beefContract = common.HexToAddress("0x000000000000000000000000000000000000BEEF")

func Test_ParseKind(t *testing.T) {
	for _, k := range []Kind{KindMasterApproval, KindPositionApproval, KindTokenPermit} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	parsed, err := ParseKind("TOKENPERMIT")
	require.NoError(t, err)
	require.Equal(t, KindTokenPermit, parsed)

	_, err = ParseKind("transfer")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func Test_TypeHashes(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash([]byte(MasterApprovalTypeSignature)), MasterApprovalType.Hash())
	require.Equal(t,
		common.HexToHash("0x6e71edae12b1b97f4d1f60370fef10105fa2faae0126114a169c64845d6126c9"),
		PermitType.Hash(),
	)
}

func Test_Builders(t *testing.T) {
	t.Run("Master approval matches the pinned digest", func(t *testing.T) {
		msg := BuildMasterApproval(testutil.AliceAddress, testutil.MasterContractAddress, true, 0)
		digest := typedData.HashTypedData(BentoBoxDomain(31337, testutil.BentoBoxAddress), msg)
		require.Equal(t, common.HexToHash("0x0bde38ffc896ad96b6e981d1b327f94d1e103d044a6caf9bba1deaaf826cc421"), digest)
	})

	t.Run("Revoke uses the revoke warning", func(t *testing.T) {
		msg := BuildMasterApproval(testutil.AliceAddress, testutil.MasterContractAddress, false, 3)
		warning, ok := msg.Field("warning")
		require.True(t, ok)
		require.Equal(t, typedData.String(RevokeWarning), warning)

		digest := typedData.HashTypedData(BentoBoxDomain(31337, testutil.BentoBoxAddress), msg)
		require.Equal(t, common.HexToHash("0x835118e661c0ea5ee94055abd527f9f59ca1bf358cc49f8cf8410a46fa77d181"), digest)
	})

	t.Run("Position approval reuses the master approval schema", func(t *testing.T) {
		position := BuildPositionApproval(testutil.AliceAddress, testutil.LendingPairAddress, true, 4)
		master := BuildMasterApproval(testutil.AliceAddress, testutil.LendingPairAddress, true, 4)
		require.Equal(t, MasterApprovalType.Hash(), position.TypeHash)
		require.Equal(t, typedData.MessageDigest(master), typedData.MessageDigest(position))
	})

	t.Run("Token permit matches the pinned digest", func(t *testing.T) {
		msg := BuildTokenPermit(testutil.AliceAddress, testutil.BobAddress, uint256.NewInt(1000), 0, 100000)
		digest := typedData.HashTypedData(TokenDomain(1, beefContract), msg)
		require.Equal(t, common.HexToHash("0x4b5a10dfd2695b334402ab9776b52ac3ca4d890bdb78948e49e7a691722ffeaa"), digest)
	})

	t.Run("Domains differ by name", func(t *testing.T) {
		require.Equal(t, "EIP712Domain(string name,uint256 chainId,address verifyingContract)",
			BentoBoxDomain(1, testutil.BentoBoxAddress).TypeSignature())
		require.Equal(t, "EIP712Domain(uint256 chainId,address verifyingContract)",
			TokenDomain(1, testutil.TokenAddress).TypeSignature())
	})
}

func Test_Kind_NonceScope(t *testing.T) {
	require.Equal(t, KindMasterApproval.NonceScope(), KindPositionApproval.NonceScope())
	require.NotEqual(t, KindMasterApproval.NonceScope(), KindTokenPermit.NonceScope())
}

func Test_Request_Validate(t *testing.T) {
	valid := Request{
		Kind:              KindMasterApproval,
		Signer:            testutil.AliceAddress,
		Counterparty:      testutil.MasterContractAddress,
		VerifyingContract: testutil.BentoBoxAddress,
		Approved:          true,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(r *Request)
		err    error
	}{
		{"unknown kind", func(r *Request) { r.Kind = KindUnknown }, ErrUnknownKind},
		{"no signer", func(r *Request) { r.Signer = common.Address{} }, ErrInvalidRequest},
		{"no counterparty", func(r *Request) { r.Counterparty = common.Address{} }, ErrInvalidRequest},
		{"no verifying contract", func(r *Request) { r.VerifyingContract = common.Address{} }, ErrInvalidRequest},
		{"permit without value", func(r *Request) { r.Kind = KindTokenPermit }, ErrInvalidRequest},
		{"approval with value", func(r *Request) { r.Value = uint256.NewInt(1) }, ErrInvalidRequest},
		{"permit with fallback", func(r *Request) {
			r.Kind = KindTokenPermit
			r.Value = uint256.NewInt(1)
			r.Fallback = true
		}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.mutate(&r)
			require.ErrorIs(t, r.Validate(), tc.err)
		})
	}
}
