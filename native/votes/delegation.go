package votes

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/sigverify"
)

// Delegates returns the delegate currently assigned to account. The zero
// address means the account has not opted in to voting.
func (e *Engine) Delegates(account common.Address) (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	if account == (common.Address{}) {
		return common.Address{}, nil
	}
	return e.state.VotesDelegate(account)
}

// Nonce returns the next delegation signature nonce expected from account.
func (e *Engine) Nonce(account common.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.VotesNonce(account)
}

// Delegate assigns delegatee as the delegate of delegator and moves the
// delegator's full balance from the previous delegate to the new one.
func (e *Engine) Delegate(delegator, delegatee common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if delegator == (common.Address{}) {
		return fmt.Errorf("votes: delegator must not be zero: %w", coreerrors.ErrInvalidArgument)
	}
	if e.balances == nil {
		return fmt.Errorf("votes: balance source not configured")
	}
	current, err := e.state.VotesDelegate(delegator)
	if err != nil {
		return err
	}
	balance, err := e.balances.BalanceOf(delegator)
	if err != nil {
		return err
	}
	if err := e.state.VotesSetDelegate(delegator, delegatee); err != nil {
		return err
	}
	e.emitter.Emit(events.DelegateChanged{Delegator: delegator, FromDelegate: current, ToDelegate: delegatee})
	return e.moveDelegates(current, delegatee, balance)
}

// MoveVotingPowerOnTransfer follows a token movement of amount from one holder
// to another. Minting is a transfer from the zero address and burning is a
// transfer to it. Holders without a delegate neither gain nor lose power.
func (e *Engine) MoveVotingPowerOnTransfer(from, to common.Address, amount *uint256.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	src, err := e.Delegates(from)
	if err != nil {
		return err
	}
	dst, err := e.Delegates(to)
	if err != nil {
		return err
	}
	return e.moveDelegates(src, dst, amount)
}

// DelegateBySig performs a delegation authorised by an off-line signature and
// returns the recovered delegator.
func (e *Engine) DelegateBySig(delegatee common.Address, nonce uint64, expiry uint64, sig []byte) (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	signer, err := sigverify.Recover(sigverify.DelegationDigest(e.domain, delegatee, nonce, expiry), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("votes: delegateBySig: %w", err)
	}
	expected, err := e.state.VotesNonce(signer)
	if err != nil {
		return common.Address{}, err
	}
	if nonce != expected {
		return common.Address{}, fmt.Errorf("votes: delegateBySig nonce %d, expected %d: %w", nonce, expected, coreerrors.ErrStaleNonce)
	}
	if e.now() > expiry {
		return common.Address{}, fmt.Errorf("votes: delegateBySig expired at %d: %w", expiry, coreerrors.ErrSignatureExpired)
	}
	if err := e.state.VotesSetNonce(signer, expected+1); err != nil {
		return common.Address{}, err
	}
	if err := e.Delegate(signer, delegatee); err != nil {
		return common.Address{}, err
	}
	return signer, nil
}
