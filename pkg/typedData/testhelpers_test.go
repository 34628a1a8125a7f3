package typedData

import (
	"github.com/ethereum/go-ethereum/common"
)

var (
	aliceAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bobAddress   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	beefContract     = common.HexToAddress("0x000000000000000000000000000000000000BEEF")
	bentoBoxContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	masterContract   = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

	permitType = MustStructType("Permit",
		FieldDef{Name: "owner", Type: "address"},
		FieldDef{Name: "spender", Type: "address"},
		FieldDef{Name: "value", Type: "uint256"},
		FieldDef{Name: "nonce", Type: "uint256"},
		FieldDef{Name: "deadline", Type: "uint256"},
	)

	masterApprovalType = MustStructType("SetMasterContractApproval",
		FieldDef{Name: "warning", Type: "string"},
		FieldDef{Name: "user", Type: "address"},
		FieldDef{Name: "masterContract", Type: "address"},
		FieldDef{Name: "approved", Type: "bool"},
		FieldDef{Name: "nonce", Type: "uint256"},
	)
)

const (
	approveWarning = "Give FULL access to funds in (and approved to) BentoBox?"
	revokeWarning  = "Revoke access to BentoBox?"
)

func mustPermit(owner, spender common.Address, value, nonce, deadline uint64) *StructuredMessage {
	m, err := NewStructuredMessage(permitType,
		Address(owner), Address(spender), Uint64(value), Uint64(nonce), Uint64(deadline))
	if err != nil {
		panic(err)
	}
	return m
}

func mustMasterApproval(user common.Address, approved bool, nonce uint64) *StructuredMessage {
	warning := revokeWarning
	if approved {
		warning = approveWarning
	}
	m, err := NewStructuredMessage(masterApprovalType,
		String(warning), Address(user), Address(masterContract), Bool(approved), Uint64(nonce))
	if err != nil {
		panic(err)
	}
	return m
}
