// Package bank keeps the governance token balances. It is a minimal ledger
// whose only job is to feed balance movements into the voting power ledger.
package bank

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
)

type bankState interface {
	BankBalance(account common.Address) (*uint256.Int, error)
	BankSetBalance(account common.Address, amount *uint256.Int) error
	BankTotalSupply() (*uint256.Int, error)
	BankSetTotalSupply(amount *uint256.Int) error
	BankMinter() (common.Address, error)
	BankSetMinter(minter common.Address) error
}

// TransferHook observes every balance movement. Mints use the zero address as
// the source.
type TransferHook interface {
	MoveVotingPowerOnTransfer(from, to common.Address, amount *uint256.Int) error
}

// Ledger tracks token balances and the mint authority.
type Ledger struct {
	address common.Address
	state   bankState
	hook    TransferHook
	emitter events.Emitter
}

// NewLedger constructs a ledger identified by address when invoked as a
// timelock target.
func NewLedger(address common.Address) *Ledger {
	return &Ledger{address: address, emitter: events.NoopEmitter{}}
}

// Address returns the ledger identity.
func (l *Ledger) Address() common.Address { return l.address }

// SetState wires the ledger to the state backend.
func (l *Ledger) SetState(state bankState) { l.state = state }

// SetTransferHook configures the observer notified on balance movements.
func (l *Ledger) SetTransferHook(hook TransferHook) { l.hook = hook }

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return fmt.Errorf("bank: state not configured")
	}
	return nil
}

// Initialize records the mint authority when none is set yet.
func (l *Ledger) Initialize(minter common.Address) error {
	if err := l.ready(); err != nil {
		return err
	}
	current, err := l.state.BankMinter()
	if err != nil {
		return err
	}
	if current != (common.Address{}) {
		return nil
	}
	return l.state.BankSetMinter(minter)
}

// BalanceOf returns the balance of account.
func (l *Ledger) BalanceOf(account common.Address) (*uint256.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.BankBalance(account)
}

// TotalSupply returns the number of tokens in circulation.
func (l *Ledger) TotalSupply() (*uint256.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	return l.state.BankTotalSupply()
}

// Minter returns the current mint authority.
func (l *Ledger) Minter() (common.Address, error) {
	if err := l.ready(); err != nil {
		return common.Address{}, err
	}
	return l.state.BankMinter()
}

// SetMinter rotates the mint authority. Only the current minter may call it.
func (l *Ledger) SetMinter(caller, minter common.Address) error {
	if err := l.ready(); err != nil {
		return err
	}
	current, err := l.state.BankMinter()
	if err != nil {
		return err
	}
	if caller != current {
		return fmt.Errorf("bank: only the minter can change the minter address: %w", coreerrors.ErrAuthorization)
	}
	if err := l.state.BankSetMinter(minter); err != nil {
		return err
	}
	l.emitter.Emit(events.MinterChanged{OldMinter: current, NewMinter: minter})
	return nil
}

// Mint creates amount tokens for to. Only the minter may call it.
func (l *Ledger) Mint(caller, to common.Address, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	minter, err := l.state.BankMinter()
	if err != nil {
		return err
	}
	if minter == (common.Address{}) || caller != minter {
		return fmt.Errorf("bank: only the minter can mint: %w", coreerrors.ErrAuthorization)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("bank: cannot mint to the zero address: %w", coreerrors.ErrInvalidArgument)
	}
	if amount == nil || amount.IsZero() {
		return nil
	}
	supply, err := l.state.BankTotalSupply()
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return fmt.Errorf("bank: total supply overflows: %w", coreerrors.ErrInvalidArgument)
	}
	balance, err := l.state.BankBalance(to)
	if err != nil {
		return err
	}
	if err := l.state.BankSetTotalSupply(newSupply); err != nil {
		return err
	}
	if err := l.state.BankSetBalance(to, new(uint256.Int).Add(balance, amount)); err != nil {
		return err
	}
	return l.afterMove(common.Address{}, to, amount)
}

// Transfer moves amount tokens from one holder to another.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	if err := l.ready(); err != nil {
		return err
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		return fmt.Errorf("bank: transfer with the zero address: %w", coreerrors.ErrInvalidArgument)
	}
	if amount == nil {
		amount = new(uint256.Int)
	}
	fromBalance, err := l.state.BankBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("bank: transfer amount exceeds balance: %w", coreerrors.ErrInsufficientBalance)
	}
	if from != to {
		toBalance, err := l.state.BankBalance(to)
		if err != nil {
			return err
		}
		if err := l.state.BankSetBalance(from, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := l.state.BankSetBalance(to, new(uint256.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}
	return l.afterMove(from, to, amount)
}

func (l *Ledger) afterMove(from, to common.Address, amount *uint256.Int) error {
	l.emitter.Emit(events.Transfer{From: from, To: to, Amount: new(uint256.Int).Set(amount)})
	if l.hook == nil {
		return nil
	}
	return l.hook.MoveVotingPowerOnTransfer(from, to, amount)
}
