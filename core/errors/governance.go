package errors

import (
	stderrors "errors"
	"fmt"
)

// Error families shared by the voting ledger, proposal registry and timelock
// queue. Engines wrap these with operation context so callers can match on
// the family with errors.Is.
var (
	ErrAuthorization       = stderrors.New("caller not authorized")
	ErrNotFound            = stderrors.New("not found")
	ErrState               = stderrors.New("invalid state for operation")
	ErrTiming              = stderrors.New("timing constraint violated")
	ErrArityMismatch       = stderrors.New("proposal function information arity mismatch")
	ErrEmptyActions        = stderrors.New("must provide actions")
	ErrDuplicateAction     = stderrors.New("action already queued at eta")
	ErrAlreadyVoted        = stderrors.New("voter already voted")
	ErrThreshold           = stderrors.New("proposer votes below proposal threshold")
	ErrInvalidSignature    = stderrors.New("invalid signature")
	ErrSignatureExpired    = stderrors.New("signature expired")
	ErrStaleNonce          = stderrors.New("invalid nonce")
	ErrNotQueued           = stderrors.New("transaction hasn't been queued")
	ErrExecutionReverted   = stderrors.New("transaction execution reverted")
	ErrInsufficientBalance = stderrors.New("insufficient balance")
	ErrInvalidArgument     = stderrors.New("invalid argument")
)

var (
	ErrVotingClosed          = fmt.Errorf("%w: voting is closed", ErrState)
	ErrDuplicateLiveProposal = fmt.Errorf("%w: one live proposal per proposer", ErrState)
	ErrStale                 = fmt.Errorf("%w: transaction is stale", ErrTiming)
)
