package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Layr-Labs/approval-signer-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
)

// ContractRegistry maps contract names to addresses and back. It is passed explicitly to
// whatever needs to resolve or label contracts.
type ContractRegistry struct {
	mu     sync.RWMutex
	byName map[string]common.Address
	byAddr map[common.Address]string
}

type Entry struct {
	Name    string
	Address common.Address
}

func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{
		byName: make(map[string]common.Address),
		byAddr: make(map[common.Address]string),
	}
}

// Register adds name -> addr. Registering the same pair twice is a no-op; reusing a name or an
// address for something else is an error.
func (r *ContractRegistry) Register(name string, addr common.Address) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("contract name is required")
	}
	if common.IsHexAddress(name) {
		return fmt.Errorf("contract name %q looks like an address", name)
	}
	if addr == (common.Address{}) {
		return fmt.Errorf("contract %s has the zero address", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if existing == addr {
			return nil
		}
		return fmt.Errorf("contract %s is already registered at %s", name, existing.Hex())
	}
	if existing, ok := r.byAddr[addr]; ok {
		return fmt.Errorf("address %s is already registered as %s", addr.Hex(), existing)
	}
	r.byName[name] = addr
	r.byAddr[addr] = name
	return nil
}

// ParseEntry parses "name=0x...".
func ParseEntry(s string) (Entry, error) {
	name, hex, ok := strings.Cut(s, "=")
	if !ok {
		return Entry{}, fmt.Errorf("contract entry %q must look like name=0x...", s)
	}
	hex = strings.TrimSpace(hex)
	if !common.IsHexAddress(hex) {
		return Entry{}, fmt.Errorf("contract entry %q has an invalid address", s)
	}
	return Entry{Name: strings.TrimSpace(name), Address: common.HexToAddress(hex)}, nil
}

// RegisterEntries parses and registers every "name=0x..." entry.
func (r *ContractRegistry) RegisterEntries(entries []string) error {
	for _, s := range entries {
		e, err := ParseEntry(s)
		if err != nil {
			return err
		}
		if err := r.Register(e.Name, e.Address); err != nil {
			return err
		}
	}
	return nil
}

// Resolve accepts either a hex address or a registered name.
func (r *ContractRegistry) Resolve(nameOrAddress string) (common.Address, error) {
	s := strings.TrimSpace(nameOrAddress)
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.byName[s]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown contract %q", s)
	}
	return addr, nil
}

func (r *ContractRegistry) Name(addr common.Address) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byAddr[addr]
	return name, ok
}

// Label renders addr for logs, e.g. "bentoBox(0x5FbD...0aa3)".
func (r *ContractRegistry) Label(addr common.Address) string {
	if name, ok := r.Name(addr); ok {
		return fmt.Sprintf("%s(%s)", name, util.ShortAddress(addr))
	}
	return util.ShortAddress(addr)
}

// Entries returns every registration sorted by name.
func (r *ContractRegistry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.byName))
	for name, addr := range r.byName {
		out = append(out, Entry{Name: name, Address: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
