package bank

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/native/timelock"
)

const (
	SignatureTransfer  = "transfer(address,uint256)"
	SignatureSetMinter = "setMinter(address)"
	SignatureMint      = "mint(address,uint256)"
)

// Target exposes the ledger to calls executed by the timelock. Transfers move
// tokens out of the sender's own balance.
type Target struct {
	ledger  *Ledger
	methods *timelock.MethodTable
}

// NewTarget wraps ledger as a timelock target.
func NewTarget(ledger *Ledger) *Target {
	t := &Target{ledger: ledger, methods: timelock.NewMethodTable()}
	t.methods.MustRegister(SignatureTransfer, t.transfer)
	t.methods.MustRegister(SignatureSetMinter, t.setMinter)
	t.methods.MustRegister(SignatureMint, t.mint)
	return t
}

// Invoke implements timelock.Target.
func (t *Target) Invoke(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error) {
	if value != nil && !value.IsZero() {
		return nil, fmt.Errorf("bank: target is not payable: %w", coreerrors.ErrInvalidArgument)
	}
	return t.methods.Dispatch(sender, value, callData)
}

func amountArg(arg interface{}) (*uint256.Int, error) {
	raw, ok := arg.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("bank: invalid amount: %w", coreerrors.ErrInvalidArgument)
	}
	amount, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("bank: amount overflows: %w", coreerrors.ErrInvalidArgument)
	}
	return amount, nil
}

func addressArg(arg interface{}) (common.Address, error) {
	addr, ok := arg.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("bank: invalid address: %w", coreerrors.ErrInvalidArgument)
	}
	return addr, nil
}

func (t *Target) transfer(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	to, err := addressArg(args[0])
	if err != nil {
		return nil, err
	}
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, err
	}
	return nil, t.ledger.Transfer(sender, to, amount)
}

func (t *Target) setMinter(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	minter, err := addressArg(args[0])
	if err != nil {
		return nil, err
	}
	return nil, t.ledger.SetMinter(sender, minter)
}

func (t *Target) mint(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	to, err := addressArg(args[0])
	if err != nil {
		return nil, err
	}
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, err
	}
	return nil, t.ledger.Mint(sender, to, amount)
}
