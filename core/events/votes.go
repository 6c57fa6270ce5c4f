package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/core/types"
)

const (
	// TypeDelegateChanged is emitted when an account changes its delegate.
	TypeDelegateChanged = "votes.delegate_changed"
	// TypeDelegateVotesChanged is emitted whenever a delegate's checkpointed
	// voting power changes.
	TypeDelegateVotesChanged = "votes.delegate_votes_changed"
)

type DelegateChanged struct {
	Delegator    common.Address
	FromDelegate common.Address
	ToDelegate   common.Address
}

func (DelegateChanged) EventType() string { return TypeDelegateChanged }

func (e DelegateChanged) Event() *types.Event {
	return &types.Event{Type: TypeDelegateChanged, Attributes: map[string]string{
		"delegator":    formatAddress(e.Delegator),
		"fromDelegate": formatAddress(e.FromDelegate),
		"toDelegate":   formatAddress(e.ToDelegate),
	}}
}

type DelegateVotesChanged struct {
	Delegate     common.Address
	PreviousVote *uint256.Int
	NewVote      *uint256.Int
}

func (DelegateVotesChanged) EventType() string { return TypeDelegateVotesChanged }

func (e DelegateVotesChanged) Event() *types.Event {
	return &types.Event{Type: TypeDelegateVotesChanged, Attributes: map[string]string{
		"delegate":        formatAddress(e.Delegate),
		"previousBalance": formatAmount(e.PreviousVote),
		"newBalance":      formatAmount(e.NewVote),
	}}
}
