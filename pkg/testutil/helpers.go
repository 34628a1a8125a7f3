package testutil

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/params"
)

// Hardhat / anvil default accounts 0, 1 and 2.
const (
	AlicePrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	BobPrivateKey   = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	CarolPrivateKey = "0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a"
)

var (
	AliceAddress = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	BobAddress   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	CarolAddress = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	// Addresses of the first deployments from account 0 on a fresh hardhat node.
	BentoBoxAddress       = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	MasterContractAddress = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	TokenAddress          = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	LendingPairAddress    = common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9")
)

// ConstantSevenRuntime is runtime bytecode that returns the 32-byte word 7 for every call:
// PUSH1 0x07 PUSH1 0x00 MSTORE PUSH1 0x20 PUSH1 0x00 RETURN.
var ConstantSevenRuntime = common.FromHex("0x600760005260206000f3")

// SimulatedChainID is the chain id of go-ethereum's simulated backend.
var SimulatedChainID = params.AllDevChainProtocolChanges.ChainID

// SimulatedChain is an in-process chain with funded hardhat accounts and ConstantSevenRuntime
// deployed at BentoBoxAddress, TokenAddress and LendingPairAddress.
type SimulatedChain struct {
	Backend *simulated.Backend
	Client  simulated.Client

	// RPCURL is set by NewSimulatedRPCChain.
	RPCURL string
}

func NewSimulatedChain(t *testing.T) *SimulatedChain {
	t.Helper()
	return newSimulatedChain(t)
}

// NewSimulatedRPCChain is NewSimulatedChain reporting chainId and also serving JSON-RPC over
// HTTP at RPCURL, for code that dials a node by URL.
func NewSimulatedRPCChain(t *testing.T, chainId uint64) *SimulatedChain {
	t.Helper()

	port := freePort(t)
	chain := newSimulatedChain(t, func(nodeConf *node.Config, ethConf *ethconfig.Config) {
		nodeConf.HTTPHost = "127.0.0.1"
		nodeConf.HTTPPort = port
		nodeConf.HTTPModules = []string{"eth", "net", "web3"}
		nodeConf.HTTPVirtualHosts = []string{"*"}

		chainConfig := *ethConf.Genesis.Config
		chainConfig.ChainID = new(big.Int).SetUint64(chainId)
		ethConf.Genesis.Config = &chainConfig
	})
	chain.RPCURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	return chain
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func newSimulatedChain(t *testing.T, options ...func(nodeConf *node.Config, ethConf *ethconfig.Config)) *SimulatedChain {
	t.Helper()

	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(params.Ether))
	alloc := types.GenesisAlloc{
		AliceAddress:       {Balance: balance},
		BobAddress:         {Balance: balance},
		CarolAddress:       {Balance: balance},
		BentoBoxAddress:    {Code: ConstantSevenRuntime, Balance: common.Big0},
		TokenAddress:       {Code: ConstantSevenRuntime, Balance: common.Big0},
		LendingPairAddress: {Code: ConstantSevenRuntime, Balance: common.Big0},
	}

	backend := simulated.NewBackend(alloc, options...)
	t.Cleanup(func() {
		_ = backend.Close()
	})

	return &SimulatedChain{
		Backend: backend,
		Client:  backend.Client(),
	}
}

// AutoCommit mines a block every interval until ctx is done, so calls that wait for receipts
// can complete.
func (s *SimulatedChain) AutoCommit(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Backend.Commit()
			case <-ctx.Done():
				return
			}
		}
	}()
}
