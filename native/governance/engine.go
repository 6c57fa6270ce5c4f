// Package governance implements the proposal registry: token-weighted voting
// on bundles of timelocked actions.
package governance

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/sigverify"
	"govchain/native/timelock"
)

// SignatureConfig is the governed method that updates the registry
// parameters. A zero argument leaves the matching parameter unchanged.
const SignatureConfig = "config(uint256,uint256,uint256,uint256)"

var errStateNotConfigured = errors.New("governance: state not configured")

type proposalState interface {
	GovernanceProposalCount() (uint64, error)
	GovernanceSetProposalCount(count uint64) error
	GovernanceGetProposal(id uint64) (*Proposal, bool, error)
	GovernancePutProposal(p *Proposal) error
	GovernanceReceipt(id uint64, voter common.Address) (*Receipt, bool, error)
	GovernancePutReceipt(id uint64, voter common.Address, receipt *Receipt) error
	GovernanceLatestProposalID(proposer common.Address) (uint64, error)
	GovernanceSetLatestProposalID(proposer common.Address, id uint64) error
	GovernanceParams() (*Params, bool, error)
	GovernancePutParams(params *Params) error
}

// VotingPower answers historical voting power queries.
type VotingPower interface {
	PriorPower(account common.Address, atTime uint64) (*uint256.Int, error)
}

// Timelock is the execution queue proposals are scheduled into.
type Timelock interface {
	Address() common.Address
	Delay() (uint64, error)
	GracePeriod() uint64
	Queued(hash common.Hash) (bool, error)
	QueueTransaction(caller common.Address, call timelock.Call, eta uint64) (common.Hash, error)
	CancelTransaction(caller common.Address, call timelock.Call, eta uint64) (common.Hash, error)
	ExecuteTransaction(caller common.Address, call timelock.Call, eta uint64) ([]byte, error)
	AcceptAdmin(caller common.Address) error
}

// Engine orchestrates proposal admission, voting and execution.
type Engine struct {
	address  common.Address
	state    proposalState
	votes    VotingPower
	timelock Timelock
	emitter  events.Emitter
	nowFn    func() time.Time
	domain   sigverify.Domain
	guardian common.Address
	defaults Params
	methods  *timelock.MethodTable
}

// NewEngine constructs a registry identified by address. The address is the
// identity used as timelock admin and as the target of governed calls.
func NewEngine(address common.Address) *Engine {
	e := &Engine{
		address:  address,
		emitter:  events.NoopEmitter{},
		nowFn:    func() time.Time { return time.Now().UTC() },
		defaults: DefaultParams(),
	}
	e.methods = timelock.NewMethodTable()
	e.methods.MustRegister(SignatureConfig, e.handleConfig)
	return e
}

// Address returns the registry identity.
func (e *Engine) Address() common.Address { return e.address }

// SetState wires the engine to the state backend providing persistence helpers.
func (e *Engine) SetState(state proposalState) { e.state = state }

// SetVotingPower configures the ledger used for threshold and vote weights.
func (e *Engine) SetVotingPower(votes VotingPower) { e.votes = votes }

// SetTimelock configures the execution queue.
func (e *Engine) SetTimelock(tl Timelock) { e.timelock = tl }

// SetDomain configures the signing domain used by CastVoteBySig.
func (e *Engine) SetDomain(domain sigverify.Domain) { e.domain = domain }

// SetGuardian configures the designated authority allowed to cancel
// proposals of proposers that lost their threshold and to accept the
// timelock admin role.
func (e *Engine) SetGuardian(guardian common.Address) { e.guardian = guardian }

// Guardian returns the configured guardian.
func (e *Engine) Guardian() common.Address { return e.guardian }

// SetDefaultParams sets the parameters used until a governed config call
// stores its own.
func (e *Engine) SetDefaultParams(params Params) { e.defaults = params.Copy() }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	return uint64(e.nowFn().Unix())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errStateNotConfigured
	}
	if e.votes == nil {
		return fmt.Errorf("governance: voting power not configured")
	}
	if e.timelock == nil {
		return fmt.Errorf("governance: timelock not configured")
	}
	return nil
}

// Params returns the effective registry parameters.
func (e *Engine) Params() (Params, error) {
	if e == nil || e.state == nil {
		return Params{}, errStateNotConfigured
	}
	stored, ok, err := e.state.GovernanceParams()
	if err != nil {
		return Params{}, err
	}
	if !ok || stored == nil {
		return e.defaults.Copy(), nil
	}
	return stored.Copy(), nil
}

func (e *Engine) loadProposal(id uint64) (*Proposal, error) {
	proposal, ok, err := e.state.GovernanceGetProposal(id)
	if err != nil {
		return nil, err
	}
	if !ok || proposal == nil {
		return nil, fmt.Errorf("governance: proposal %d: %w", id, coreerrors.ErrNotFound)
	}
	return proposal, nil
}

// deriveState computes the lifecycle state of p at now.
func deriveState(p *Proposal, now uint64, quorum *uint256.Int, grace uint64) ProposalState {
	forVotes := cloneAmount(p.ForVotes)
	againstVotes := cloneAmount(p.AgainstVotes)
	switch {
	case p.Canceled:
		return ProposalStateCanceled
	case p.Executed:
		return ProposalStateExecuted
	case now <= p.StartTime:
		return ProposalStatePending
	case now <= p.EndTime:
		return ProposalStateActive
	case !forVotes.Gt(againstVotes) || forVotes.Lt(cloneAmount(quorum)):
		return ProposalStateDefeated
	case p.Eta == 0:
		return ProposalStateSucceeded
	case now >= p.Eta+grace:
		return ProposalStateExpired
	default:
		return ProposalStateQueued
	}
}

func (e *Engine) stateOf(p *Proposal) (ProposalState, error) {
	params, err := e.Params()
	if err != nil {
		return 0, err
	}
	return deriveState(p, e.now(), params.QuorumVotes, e.timelock.GracePeriod()), nil
}

// State returns the derived lifecycle state of proposal id.
func (e *Engine) State(id uint64) (ProposalState, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return 0, err
	}
	return e.stateOf(proposal)
}

// Propose admits a proposal built from four parallel action arrays and returns
// its identifier.
func (e *Engine) Propose(proposer common.Address, targets []common.Address, values []*uint256.Int, signatures []string, calldatas [][]byte, description string) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	params, err := e.Params()
	if err != nil {
		return 0, err
	}
	now := e.now()
	if now == 0 {
		return 0, fmt.Errorf("governance: clock not started: %w", coreerrors.ErrTiming)
	}
	power, err := e.votes.PriorPower(proposer, now-1)
	if err != nil {
		return 0, err
	}
	if power.Lt(params.ProposalThreshold) {
		return 0, fmt.Errorf("governance: propose: %w", coreerrors.ErrThreshold)
	}
	if len(targets) != len(values) || len(targets) != len(signatures) || len(targets) != len(calldatas) {
		return 0, fmt.Errorf("governance: propose: %w", coreerrors.ErrArityMismatch)
	}
	if len(targets) == 0 {
		return 0, fmt.Errorf("governance: propose: %w", coreerrors.ErrEmptyActions)
	}
	if uint64(len(targets)) > params.MaxOperations {
		return 0, fmt.Errorf("governance: propose: too many actions (max %d): %w", params.MaxOperations, coreerrors.ErrEmptyActions)
	}

	latestID, err := e.state.GovernanceLatestProposalID(proposer)
	if err != nil {
		return 0, err
	}
	if latestID != 0 {
		latest, err := e.loadProposal(latestID)
		if err != nil {
			return 0, err
		}
		state := deriveState(latest, now, params.QuorumVotes, e.timelock.GracePeriod())
		if state == ProposalStatePending || state == ProposalStateActive {
			return 0, fmt.Errorf("governance: propose: proposal %d is %s: %w", latestID, state, coreerrors.ErrDuplicateLiveProposal)
		}
	}

	count, err := e.state.GovernanceProposalCount()
	if err != nil {
		return 0, err
	}
	id := count + 1
	actions := make([]Action, len(targets))
	for i := range targets {
		actions[i] = Action{
			Target:    targets[i],
			Value:     cloneAmount(values[i]),
			Signature: signatures[i],
			CallData:  append([]byte(nil), calldatas[i]...),
		}
	}
	proposal := &Proposal{
		ID:           id,
		Proposer:     proposer,
		StartTime:    now,
		EndTime:      now + params.VotingPeriod,
		ForVotes:     new(uint256.Int),
		AgainstVotes: new(uint256.Int),
		Description:  description,
		Actions:      actions,
	}
	if err := e.state.GovernanceSetProposalCount(id); err != nil {
		return 0, err
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return 0, err
	}
	if err := e.state.GovernanceSetLatestProposalID(proposer, id); err != nil {
		return 0, err
	}
	e.emitter.Emit(newProposalCreatedEvent(proposal))
	return id, nil
}

func newProposalCreatedEvent(p *Proposal) events.ProposalCreated {
	evt := events.ProposalCreated{
		ID:          p.ID,
		Proposer:    p.Proposer,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Description: p.Description,
	}
	for _, action := range p.Actions {
		evt.Targets = append(evt.Targets, action.Target)
		evt.Values = append(evt.Values, cloneAmount(action.Value))
		evt.Signatures = append(evt.Signatures, action.Signature)
		evt.CallDatas = append(evt.CallDatas, append([]byte(nil), action.CallData...))
	}
	return evt
}

// CastVote records voter's ballot using their power at the proposal start.
func (e *Engine) CastVote(voter common.Address, id uint64, support bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.castVote(voter, id, support)
}

// CastVoteBySig records a ballot authorised by an off-line signature and
// returns the recovered voter.
func (e *Engine) CastVoteBySig(id uint64, support bool, sig []byte) (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	voter, err := sigverify.Recover(sigverify.BallotDigest(e.domain, id, support), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("governance: castVoteBySig: %w", err)
	}
	if err := e.castVote(voter, id, support); err != nil {
		return common.Address{}, err
	}
	return voter, nil
}

func (e *Engine) castVote(voter common.Address, id uint64, support bool) error {
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	state, err := e.stateOf(proposal)
	if err != nil {
		return err
	}
	if state != ProposalStateActive {
		return fmt.Errorf("governance: proposal %d is %s: %w", id, state, coreerrors.ErrVotingClosed)
	}
	receipt, ok, err := e.state.GovernanceReceipt(id, voter)
	if err != nil {
		return err
	}
	if ok && receipt != nil && receipt.HasVoted {
		return fmt.Errorf("governance: %s on proposal %d: %w", voter.Hex(), id, coreerrors.ErrAlreadyVoted)
	}
	weight, err := e.votes.PriorPower(voter, proposal.StartTime)
	if err != nil {
		return err
	}
	var overflow bool
	if support {
		proposal.ForVotes, overflow = new(uint256.Int).AddOverflow(cloneAmount(proposal.ForVotes), weight)
	} else {
		proposal.AgainstVotes, overflow = new(uint256.Int).AddOverflow(cloneAmount(proposal.AgainstVotes), weight)
	}
	if overflow {
		return fmt.Errorf("governance: tally overflow on proposal %d: %w", id, coreerrors.ErrState)
	}
	if err := e.state.GovernancePutReceipt(id, voter, &Receipt{HasVoted: true, Support: support, Votes: cloneAmount(weight)}); err != nil {
		return err
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.VoteCast{Voter: voter, ProposalID: id, Support: support, Votes: cloneAmount(weight)})
	return nil
}

// Cancel withdraws a proposal. The proposer may always cancel before
// execution; the guardian may cancel once the proposer's power has fallen
// below the proposal threshold.
func (e *Engine) Cancel(caller common.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	state, err := e.stateOf(proposal)
	if err != nil {
		return err
	}
	if state == ProposalStateExecuted {
		return fmt.Errorf("governance: cannot cancel executed proposal %d: %w", id, coreerrors.ErrState)
	}
	if caller != proposal.Proposer {
		if e.guardian == (common.Address{}) || caller != e.guardian {
			return fmt.Errorf("governance: cancel proposal %d: %w", id, coreerrors.ErrAuthorization)
		}
		params, err := e.Params()
		if err != nil {
			return err
		}
		power, err := e.votes.PriorPower(proposal.Proposer, e.now()-1)
		if err != nil {
			return err
		}
		if !power.Lt(params.ProposalThreshold) {
			return fmt.Errorf("governance: proposer above threshold: %w", coreerrors.ErrAuthorization)
		}
	}
	proposal.Canceled = true
	if proposal.Eta != 0 {
		for _, action := range proposal.Actions {
			if _, err := e.timelock.CancelTransaction(e.address, action.Call(), proposal.Eta); err != nil {
				return err
			}
		}
	}
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.ProposalCanceled{ID: id, Caller: caller})
	return nil
}

// Queue schedules every action of a succeeded proposal at now plus the
// timelock delay. No action is queued unless all of them can be.
func (e *Engine) Queue(id uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return 0, err
	}
	state, err := e.stateOf(proposal)
	if err != nil {
		return 0, err
	}
	if state != ProposalStateSucceeded {
		return 0, fmt.Errorf("governance: proposal %d is %s, not succeeded: %w", id, state, coreerrors.ErrState)
	}
	delay, err := e.timelock.Delay()
	if err != nil {
		return 0, err
	}
	eta := e.now() + delay
	seen := make(map[common.Hash]struct{}, len(proposal.Actions))
	for _, action := range proposal.Actions {
		hash, err := timelock.TxHash(action.Call(), eta)
		if err != nil {
			return 0, err
		}
		if _, dup := seen[hash]; dup {
			return 0, fmt.Errorf("governance: proposal %d repeats an action at eta %d: %w", id, eta, coreerrors.ErrDuplicateAction)
		}
		seen[hash] = struct{}{}
		queued, err := e.timelock.Queued(hash)
		if err != nil {
			return 0, err
		}
		if queued {
			return 0, fmt.Errorf("governance: proposal action already queued at eta %d: %w", eta, coreerrors.ErrDuplicateAction)
		}
	}
	for _, action := range proposal.Actions {
		if _, err := e.timelock.QueueTransaction(e.address, action.Call(), eta); err != nil {
			return 0, err
		}
	}
	proposal.Eta = eta
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.ProposalQueued{ID: id, Eta: eta})
	return eta, nil
}

// Execute runs every action of a queued proposal. The proposal is marked
// executed only after all actions succeed.
func (e *Engine) Execute(id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return err
	}
	state, err := e.stateOf(proposal)
	if err != nil {
		return err
	}
	if state != ProposalStateQueued {
		return fmt.Errorf("governance: proposal %d is %s, not queued: %w", id, state, coreerrors.ErrState)
	}
	for i, action := range proposal.Actions {
		if _, err := e.timelock.ExecuteTransaction(e.address, action.Call(), proposal.Eta); err != nil {
			return fmt.Errorf("governance: proposal %d action %d: %w", id, i, err)
		}
	}
	proposal.Executed = true
	if err := e.state.GovernancePutProposal(proposal); err != nil {
		return err
	}
	e.emitter.Emit(events.ProposalExecuted{ID: id})
	return nil
}

// AcceptAdmin makes the registry accept a pending timelock admin handover. It
// may only be triggered by the guardian.
func (e *Engine) AcceptAdmin(caller common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.guardian == (common.Address{}) || caller != e.guardian {
		return fmt.Errorf("governance: acceptAdmin: sender must be gov guardian: %w", coreerrors.ErrAuthorization)
	}
	return e.timelock.AcceptAdmin(e.address)
}

// Proposal returns a copy of proposal id.
func (e *Engine) Proposal(id uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	proposal, err := e.loadProposal(id)
	if err != nil {
		return nil, err
	}
	return proposal.Copy(), nil
}

// Actions returns the actions of proposal id.
func (e *Engine) Actions(id uint64) ([]Action, error) {
	proposal, err := e.Proposal(id)
	if err != nil {
		return nil, err
	}
	return proposal.Actions, nil
}

// Receipt returns the ballot voter cast on proposal id. A voter that has not
// voted yields an empty receipt.
func (e *Engine) Receipt(id uint64, voter common.Address) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, errStateNotConfigured
	}
	if _, err := e.loadProposal(id); err != nil {
		return nil, err
	}
	receipt, ok, err := e.state.GovernanceReceipt(id, voter)
	if err != nil {
		return nil, err
	}
	if !ok || receipt == nil {
		return &Receipt{Votes: new(uint256.Int)}, nil
	}
	return &Receipt{HasVoted: receipt.HasVoted, Support: receipt.Support, Votes: cloneAmount(receipt.Votes)}, nil
}

// LatestProposalID returns the most recent proposal created by proposer, or
// zero when none exists.
func (e *Engine) LatestProposalID(proposer common.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	return e.state.GovernanceLatestProposalID(proposer)
}

// ProposalCount returns the number of proposals ever created.
func (e *Engine) ProposalCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errStateNotConfigured
	}
	return e.state.GovernanceProposalCount()
}

// Invoke implements timelock.Target. Only the timelock may call the registry.
func (e *Engine) Invoke(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if sender != e.timelock.Address() {
		return nil, fmt.Errorf("governance: call must come from timelock: %w", coreerrors.ErrAuthorization)
	}
	return e.methods.Dispatch(sender, value, callData)
}

func (e *Engine) handleConfig(_ common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	raw := make([]*big.Int, len(args))
	for i, arg := range args {
		value, ok := arg.(*big.Int)
		if !ok {
			return nil, fmt.Errorf("governance: config argument %d: %w", i, coreerrors.ErrInvalidArgument)
		}
		raw[i] = value
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	if raw[0].Sign() != 0 {
		quorum, overflow := uint256.FromBig(raw[0])
		if overflow {
			return nil, fmt.Errorf("governance: quorum overflows: %w", coreerrors.ErrInvalidArgument)
		}
		params.QuorumVotes = quorum
	}
	if raw[1].Sign() != 0 {
		threshold, overflow := uint256.FromBig(raw[1])
		if overflow {
			return nil, fmt.Errorf("governance: threshold overflows: %w", coreerrors.ErrInvalidArgument)
		}
		params.ProposalThreshold = threshold
	}
	if raw[2].Sign() != 0 {
		if !raw[2].IsUint64() {
			return nil, fmt.Errorf("governance: max operations out of range: %w", coreerrors.ErrInvalidArgument)
		}
		params.MaxOperations = raw[2].Uint64()
	}
	if raw[3].Sign() != 0 {
		if !raw[3].IsUint64() {
			return nil, fmt.Errorf("governance: voting period out of range: %w", coreerrors.ErrInvalidArgument)
		}
		params.VotingPeriod = raw[3].Uint64()
	}
	if err := e.state.GovernancePutParams(&params); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.GovernanceConfig{
		QuorumVotes:       cloneAmount(params.QuorumVotes),
		ProposalThreshold: cloneAmount(params.ProposalThreshold),
		MaxOperations:     params.MaxOperations,
		VotingPeriod:      params.VotingPeriod,
	})
	return nil, nil
}
