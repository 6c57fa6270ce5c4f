package governance

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/native/timelock"
)

// ProposalState enumerates the lifecycle phases a proposal moves through. The
// state is never stored; it is derived from the proposal fields and the
// current time.
type ProposalState uint8

const (
	// ProposalStatePending covers the instant the proposal was created.
	ProposalStatePending ProposalState = iota
	// ProposalStateActive identifies proposals accepting votes.
	ProposalStateActive
	// ProposalStateCanceled marks proposals withdrawn before execution.
	ProposalStateCanceled
	// ProposalStateDefeated marks proposals that missed quorum or majority.
	ProposalStateDefeated
	// ProposalStateSucceeded marks passed proposals awaiting queueing.
	ProposalStateSucceeded
	// ProposalStateQueued marks proposals scheduled in the timelock.
	ProposalStateQueued
	// ProposalStateExpired marks queued proposals whose grace window elapsed.
	ProposalStateExpired
	// ProposalStateExecuted indicates every action has been applied.
	ProposalStateExecuted
)

var proposalStateNames = map[ProposalState]string{
	ProposalStatePending:   "pending",
	ProposalStateActive:    "active",
	ProposalStateCanceled:  "canceled",
	ProposalStateDefeated:  "defeated",
	ProposalStateSucceeded: "succeeded",
	ProposalStateQueued:    "queued",
	ProposalStateExpired:   "expired",
	ProposalStateExecuted:  "executed",
}

// String returns the lowercase name of the state.
func (s ProposalState) String() string {
	if name, ok := proposalStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseProposalState resolves a state name case-insensitively.
func ParseProposalState(name string) (ProposalState, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	for state, candidate := range proposalStateNames {
		if candidate == trimmed {
			return state, true
		}
	}
	return 0, false
}

// Action is one call a proposal executes through the timelock.
type Action struct {
	Target    common.Address `json:"target"`
	Value     *uint256.Int   `json:"value"`
	Signature string         `json:"signature"`
	CallData  []byte         `json:"calldata"`
}

// Call converts the action into a timelock call descriptor.
func (a Action) Call() timelock.Call {
	value := new(uint256.Int)
	if a.Value != nil {
		value.Set(a.Value)
	}
	return timelock.Call{
		Target:    a.Target,
		Value:     value,
		Signature: a.Signature,
		Data:      append([]byte(nil), a.CallData...),
	}
}

// Proposal captures the persisted fields of a governance proposal.
type Proposal struct {
	ID           uint64         `json:"id"`
	Proposer     common.Address `json:"proposer"`
	Eta          uint64         `json:"eta"`
	StartTime    uint64         `json:"start_time"`
	EndTime      uint64         `json:"end_time"`
	ForVotes     *uint256.Int   `json:"for_votes"`
	AgainstVotes *uint256.Int   `json:"against_votes"`
	Canceled     bool           `json:"canceled"`
	Executed     bool           `json:"executed"`
	Description  string         `json:"description"`
	Actions      []Action       `json:"actions"`
}

// Copy returns a deep copy of the proposal.
func (p *Proposal) Copy() *Proposal {
	if p == nil {
		return nil
	}
	out := *p
	out.ForVotes = cloneAmount(p.ForVotes)
	out.AgainstVotes = cloneAmount(p.AgainstVotes)
	out.Actions = make([]Action, len(p.Actions))
	for i, action := range p.Actions {
		out.Actions[i] = Action{
			Target:    action.Target,
			Value:     cloneAmount(action.Value),
			Signature: action.Signature,
			CallData:  append([]byte(nil), action.CallData...),
		}
	}
	return &out
}

// Receipt records a single voter's ballot on a proposal.
type Receipt struct {
	HasVoted bool         `json:"has_voted"`
	Support  bool         `json:"support"`
	Votes    *uint256.Int `json:"votes"`
}

// Params holds the governed knobs of the proposal registry.
type Params struct {
	QuorumVotes       *uint256.Int `json:"quorum_votes"`
	ProposalThreshold *uint256.Int `json:"proposal_threshold"`
	MaxOperations     uint64       `json:"max_operations"`
	VotingPeriod      uint64       `json:"voting_period"`
}

// Copy returns a deep copy of the parameters.
func (p Params) Copy() Params {
	return Params{
		QuorumVotes:       cloneAmount(p.QuorumVotes),
		ProposalThreshold: cloneAmount(p.ProposalThreshold),
		MaxOperations:     p.MaxOperations,
		VotingPeriod:      p.VotingPeriod,
	}
}

// DefaultParams mirrors a token with 18 decimals: 400k votes for quorum, 100k
// votes to propose, ten actions per proposal and a seven day voting period.
func DefaultParams() Params {
	return Params{
		QuorumVotes:       tokens(400_000),
		ProposalThreshold: tokens(100_000),
		MaxOperations:     10,
		VotingPeriod:      7 * 24 * 60 * 60,
	}
}

func tokens(whole uint64) *uint256.Int {
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(18))
	return new(uint256.Int).Mul(uint256.NewInt(whole), unit)
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}
