package timelock

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Call describes one action executed through the timelock.
type Call struct {
	Target    common.Address
	Value     *uint256.Int
	Signature string
	Data      []byte
}

// CallData returns the payload delivered to the target: the four byte
// selector of Signature followed by Data, or Data alone when no signature is
// supplied.
func (c Call) CallData() []byte {
	if c.Signature == "" {
		return append([]byte(nil), c.Data...)
	}
	out := make([]byte, 0, 4+len(c.Data))
	out = append(out, Selector(c.Signature)...)
	return append(out, c.Data...)
}

func (c Call) value() *uint256.Int {
	if c.Value == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(c.Value)
}

// Selector returns the first four bytes of the keccak hash of signature.
func Selector(signature string) []byte {
	return ethcrypto.Keccak256([]byte(signature))[:4]
}

var (
	txHashArgsOnce sync.Once
	txHashArgs     abi.Arguments
	txHashArgsErr  error
)

func hashArguments() (abi.Arguments, error) {
	txHashArgsOnce.Do(func() {
		txHashArgs, txHashArgsErr = parseArguments([]string{"address", "uint256", "string", "bytes", "uint256"})
	})
	return txHashArgs, txHashArgsErr
}

// TxHash identifies a queued call: keccak256(abi.encode(target, value,
// signature, data, eta)).
func TxHash(call Call, eta uint64) (common.Hash, error) {
	args, err := hashArguments()
	if err != nil {
		return common.Hash{}, err
	}
	packed, err := args.Pack(
		call.Target,
		call.value().ToBig(),
		call.Signature,
		append([]byte{}, call.Data...),
		new(big.Int).SetUint64(eta),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("timelock: encode call: %w", err)
	}
	return ethcrypto.Keccak256Hash(packed), nil
}

// Target is a component that can be invoked by an executed call. The sender
// is the timelock's own address.
type Target interface {
	Invoke(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error)
}

// Router resolves call targets by address.
type Router struct {
	mu      sync.RWMutex
	targets map[common.Address]Target
}

// NewRouter constructs an empty router.
func NewRouter() *Router {
	return &Router{targets: make(map[common.Address]Target)}
}

// Register binds target to addr, replacing any previous binding.
func (r *Router) Register(addr common.Address, target Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[addr] = target
}

// Route returns the target bound to addr.
func (r *Router) Route(addr common.Address) (Target, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	target, ok := r.targets[addr]
	return target, ok
}
