package events

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/core/types"
)

const (
	// TypeProposalCreated is emitted when a new proposal is accepted.
	TypeProposalCreated = "gov.proposal_created"
	// TypeVoteCast is emitted when a voter records a ballot.
	TypeVoteCast = "gov.vote_cast"
	// TypeProposalCanceled is emitted when a proposal is canceled.
	TypeProposalCanceled = "gov.proposal_canceled"
	// TypeProposalQueued is emitted when a succeeded proposal enters the timelock.
	TypeProposalQueued = "gov.proposal_queued"
	// TypeProposalExecuted is emitted once every proposal action has executed.
	TypeProposalExecuted = "gov.proposal_executed"
	// TypeGovernanceConfig is emitted when governed parameters change.
	TypeGovernanceConfig = "gov.config_updated"
)

type ProposalCreated struct {
	ID          uint64
	Proposer    common.Address
	Targets     []common.Address
	Values      []*uint256.Int
	Signatures  []string
	CallDatas   [][]byte
	StartTime   uint64
	EndTime     uint64
	Description string
}

func (ProposalCreated) EventType() string { return TypeProposalCreated }

func (e ProposalCreated) Event() *types.Event {
	targets := make([]string, len(e.Targets))
	for i, target := range e.Targets {
		targets[i] = formatAddress(target)
	}
	values := make([]string, len(e.Values))
	for i, value := range e.Values {
		values[i] = formatAmount(value)
	}
	datas := make([]string, len(e.CallDatas))
	for i, data := range e.CallDatas {
		datas[i] = "0x" + hex.EncodeToString(data)
	}
	return &types.Event{Type: TypeProposalCreated, Attributes: map[string]string{
		"id":          formatUint(e.ID),
		"proposer":    formatAddress(e.Proposer),
		"targets":     strings.Join(targets, ","),
		"values":      strings.Join(values, ","),
		"signatures":  strings.Join(e.Signatures, ","),
		"calldatas":   strings.Join(datas, ","),
		"startTime":   formatUint(e.StartTime),
		"endTime":     formatUint(e.EndTime),
		"description": e.Description,
	}}
}

type VoteCast struct {
	Voter      common.Address
	ProposalID uint64
	Support    bool
	Votes      *uint256.Int
}

func (VoteCast) EventType() string { return TypeVoteCast }

func (e VoteCast) Event() *types.Event {
	return &types.Event{Type: TypeVoteCast, Attributes: map[string]string{
		"voter":   formatAddress(e.Voter),
		"id":      formatUint(e.ProposalID),
		"support": formatBool(e.Support),
		"votes":   formatAmount(e.Votes),
	}}
}

type ProposalCanceled struct {
	ID     uint64
	Caller common.Address
}

func (ProposalCanceled) EventType() string { return TypeProposalCanceled }

func (e ProposalCanceled) Event() *types.Event {
	return &types.Event{Type: TypeProposalCanceled, Attributes: map[string]string{
		"id":     formatUint(e.ID),
		"caller": formatAddress(e.Caller),
	}}
}

type ProposalQueued struct {
	ID  uint64
	Eta uint64
}

func (ProposalQueued) EventType() string { return TypeProposalQueued }

func (e ProposalQueued) Event() *types.Event {
	return &types.Event{Type: TypeProposalQueued, Attributes: map[string]string{
		"id":  formatUint(e.ID),
		"eta": formatUint(e.Eta),
	}}
}

type ProposalExecuted struct {
	ID uint64
}

func (ProposalExecuted) EventType() string { return TypeProposalExecuted }

func (e ProposalExecuted) Event() *types.Event {
	return &types.Event{Type: TypeProposalExecuted, Attributes: map[string]string{
		"id": formatUint(e.ID),
	}}
}

type GovernanceConfig struct {
	QuorumVotes       *uint256.Int
	ProposalThreshold *uint256.Int
	MaxOperations     uint64
	VotingPeriod      uint64
}

func (GovernanceConfig) EventType() string { return TypeGovernanceConfig }

func (e GovernanceConfig) Event() *types.Event {
	return &types.Event{Type: TypeGovernanceConfig, Attributes: map[string]string{
		"quorumVotes":       formatAmount(e.QuorumVotes),
		"proposalThreshold": formatAmount(e.ProposalThreshold),
		"maxOperations":     formatUint(e.MaxOperations),
		"votingPeriod":      formatUint(e.VotingPeriod),
	}}
}
