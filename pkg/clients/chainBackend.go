package clients

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// IChainBackend is what contract calls and transaction submission need from a node connection.
// *ethclient.Client and the simulated backend client both satisfy it.
type IChainBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}
