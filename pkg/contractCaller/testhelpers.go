package contractCaller

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/approval-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// SubmittedCall records a write made against MockContractCallerStub
type SubmittedCall struct {
	Method       string
	Contract     common.Address
	User         common.Address
	Counterparty common.Address
	Token        common.Address
	Approved     bool
	Value        *uint256.Int
	Deadline     uint64
	Signature    *types.Signature
	TxHash       common.Hash
}

// MockContractCallerStub provides an in-memory implementation of IContractCaller for testing.
// Nonces are keyed by contract and owner; NonceErr and BlockTimeErr force read failures.
type MockContractCallerStub struct {
	mu sync.Mutex

	ChainID      uint64
	BlockTime    uint64
	BentoBox     common.Address
	Nonces       map[common.Address]map[common.Address]uint64
	Separators   map[common.Address]common.Hash
	NonceErr     error
	BlockTimeErr error
	SubmitErr    error

	NonceReads int
	Submitted  []SubmittedCall
}

func NewMockContractCallerStub(chainId uint64, blockTime uint64) *MockContractCallerStub {
	return &MockContractCallerStub{
		ChainID:    chainId,
		BlockTime:  blockTime,
		Nonces:     make(map[common.Address]map[common.Address]uint64),
		Separators: make(map[common.Address]common.Hash),
	}
}

// SetNonce sets the authoritative nonce for owner on contract.
func (m *MockContractCallerStub) SetNonce(contract common.Address, owner common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Nonces[contract] == nil {
		m.Nonces[contract] = make(map[common.Address]uint64)
	}
	m.Nonces[contract][owner] = nonce
}

func (m *MockContractCallerStub) ChainId(ctx context.Context) (uint64, error) {
	return m.ChainID, nil
}

func (m *MockContractCallerStub) LatestBlockTime(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BlockTimeErr != nil {
		return 0, m.BlockTimeErr
	}
	return m.BlockTime, nil
}

func (m *MockContractCallerStub) GetNonce(ctx context.Context, contract common.Address, owner common.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NonceReads++
	if m.NonceErr != nil {
		return 0, m.NonceErr
	}
	return m.Nonces[contract][owner], nil
}

func (m *MockContractCallerStub) GetDomainSeparator(ctx context.Context, contract common.Address) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sep, ok := m.Separators[contract]
	if !ok {
		return common.Hash{}, fmt.Errorf("no domain separator for %s", contract.String())
	}
	return sep, nil
}

// record stores the call and, like the real contracts, bumps the signer's nonce when a real
// signature is consumed.
func (m *MockContractCallerStub) record(call SubmittedCall, nonceContract common.Address) (*ethTypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	call.TxHash = crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%d", call.Method, len(m.Submitted))))
	m.Submitted = append(m.Submitted, call)

	if call.Signature != nil && !call.Signature.IsSentinel() {
		if m.Nonces[nonceContract] == nil {
			m.Nonces[nonceContract] = make(map[common.Address]uint64)
		}
		m.Nonces[nonceContract][call.User]++
	}
	return &ethTypes.Receipt{
		Status: ethTypes.ReceiptStatusSuccessful,
		TxHash: call.TxHash,
	}, nil
}

func (m *MockContractCallerStub) SetMasterContractApproval(ctx context.Context, bentoBox common.Address, user common.Address, masterContract common.Address, approved bool, sig *types.Signature) (*ethTypes.Receipt, error) {
	return m.record(SubmittedCall{
		Method:       "setMasterContractApproval",
		Contract:     bentoBox,
		User:         user,
		Counterparty: masterContract,
		Approved:     approved,
		Signature:    sig,
	}, bentoBox)
}

// SetApproval bumps the nonce on BentoBox when set, otherwise on the pair itself.
func (m *MockContractCallerStub) SetApproval(ctx context.Context, pair common.Address, user common.Address, approved bool, sig *types.Signature) (*ethTypes.Receipt, error) {
	nonceContract := pair
	if m.BentoBox != (common.Address{}) {
		nonceContract = m.BentoBox
	}
	return m.record(SubmittedCall{
		Method:    "setApproval",
		Contract:  pair,
		User:      user,
		Approved:  approved,
		Signature: sig,
	}, nonceContract)
}

func (m *MockContractCallerStub) PermitToken(ctx context.Context, pair common.Address, token common.Address, owner common.Address, spender common.Address, value *uint256.Int, deadline uint64, sig *types.Signature) (*ethTypes.Receipt, error) {
	return m.record(SubmittedCall{
		Method:       "permitToken",
		Contract:     pair,
		User:         owner,
		Counterparty: spender,
		Token:        token,
		Value:        value,
		Deadline:     deadline,
		Signature:    sig,
	}, token)
}

var _ IContractCaller = (*MockContractCallerStub)(nil)
