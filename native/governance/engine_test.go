package governance

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/sigverify"
	"govchain/native/timelock"
)

type mockGovernanceState struct {
	count     uint64
	proposals map[uint64]*Proposal
	receipts  map[string]*Receipt
	latest    map[common.Address]uint64
	params    *Params
}

func newMockGovernanceState() *mockGovernanceState {
	return &mockGovernanceState{
		proposals: make(map[uint64]*Proposal),
		receipts:  make(map[string]*Receipt),
		latest:    make(map[common.Address]uint64),
	}
}

func receiptKey(id uint64, voter common.Address) string {
	return fmt.Sprintf("%d/%x", id, voter.Bytes())
}

func (m *mockGovernanceState) GovernanceProposalCount() (uint64, error) { return m.count, nil }

func (m *mockGovernanceState) GovernanceSetProposalCount(count uint64) error {
	m.count = count
	return nil
}

func (m *mockGovernanceState) GovernanceGetProposal(id uint64) (*Proposal, bool, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, false, nil
	}
	return p.Copy(), true, nil
}

func (m *mockGovernanceState) GovernancePutProposal(p *Proposal) error {
	m.proposals[p.ID] = p.Copy()
	return nil
}

func (m *mockGovernanceState) GovernanceReceipt(id uint64, voter common.Address) (*Receipt, bool, error) {
	r, ok := m.receipts[receiptKey(id, voter)]
	if !ok {
		return nil, false, nil
	}
	clone := *r
	clone.Votes = cloneAmount(r.Votes)
	return &clone, true, nil
}

func (m *mockGovernanceState) GovernancePutReceipt(id uint64, voter common.Address, r *Receipt) error {
	clone := *r
	clone.Votes = cloneAmount(r.Votes)
	m.receipts[receiptKey(id, voter)] = &clone
	return nil
}

func (m *mockGovernanceState) GovernanceLatestProposalID(proposer common.Address) (uint64, error) {
	return m.latest[proposer], nil
}

func (m *mockGovernanceState) GovernanceSetLatestProposalID(proposer common.Address, id uint64) error {
	m.latest[proposer] = id
	return nil
}

func (m *mockGovernanceState) GovernanceParams() (*Params, bool, error) {
	if m.params == nil {
		return nil, false, nil
	}
	clone := m.params.Copy()
	return &clone, true, nil
}

func (m *mockGovernanceState) GovernancePutParams(p *Params) error {
	clone := p.Copy()
	m.params = &clone
	return nil
}

type powerEntry struct {
	from  uint64
	power uint64
}

// mockPower serves prior power from a per-account history of step changes.
type mockPower struct {
	history map[common.Address][]powerEntry
}

func (m *mockPower) set(account common.Address, from, power uint64) {
	if m.history == nil {
		m.history = make(map[common.Address][]powerEntry)
	}
	m.history[account] = append(m.history[account], powerEntry{from: from, power: power})
}

func (m *mockPower) PriorPower(account common.Address, atTime uint64) (*uint256.Int, error) {
	result := uint64(0)
	for _, entry := range m.history[account] {
		if entry.from <= atTime {
			result = entry.power
		}
	}
	return uint256.NewInt(result), nil
}

type mockTimelockState struct {
	queued  map[common.Hash]bool
	admin   common.Address
	pending common.Address
	delay   uint64
}

func (m *mockTimelockState) TimelockQueued(hash common.Hash) (bool, error) { return m.queued[hash], nil }

func (m *mockTimelockState) TimelockSetQueued(hash common.Hash, queued bool) error {
	m.queued[hash] = queued
	return nil
}

func (m *mockTimelockState) TimelockAdmin() (common.Address, error) { return m.admin, nil }

func (m *mockTimelockState) TimelockSetAdmin(admin common.Address) error {
	m.admin = admin
	return nil
}

func (m *mockTimelockState) TimelockPendingAdmin() (common.Address, error) { return m.pending, nil }

func (m *mockTimelockState) TimelockSetPendingAdmin(pending common.Address) error {
	m.pending = pending
	return nil
}

func (m *mockTimelockState) TimelockDelay() (uint64, bool, error) { return m.delay, m.delay != 0, nil }

func (m *mockTimelockState) TimelockSetDelay(delay uint64) error {
	m.delay = delay
	return nil
}

type recordingTarget struct {
	calls int
	fail  bool
}

func (r *recordingTarget) Invoke(common.Address, *uint256.Int, []byte) ([]byte, error) {
	if r.fail {
		return nil, fmt.Errorf("target failure")
	}
	r.calls++
	return nil, nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

var (
	governorAddr = common.HexToAddress("0x0000000000000000000000000000000000002001")
	timelockAddr = common.HexToAddress("0x0000000000000000000000000000000000002002")
	targetAddr   = common.HexToAddress("0x0000000000000000000000000000000000002003")
	guardianAddr = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	proposerAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	whaleAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	minnowAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

const (
	testThreshold = 100
	testQuorum    = 400
	testPeriod    = 3 * 24 * 60 * 60
)

type fixture struct {
	engine   *Engine
	state    *mockGovernanceState
	power    *mockPower
	timelock *timelock.Engine
	tlState  *mockTimelockState
	target   *recordingTarget
	emitter  *captureEmitter
	now      time.Time
	start    uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:   newMockGovernanceState(),
		power:   &mockPower{},
		tlState: &mockTimelockState{queued: make(map[common.Hash]bool)},
		target:  &recordingTarget{},
		emitter: &captureEmitter{},
		now:     time.Unix(1_700_000_000, 0).UTC(),
	}
	f.start = uint64(f.now.Unix())
	clock := func() time.Time { return f.now }

	router := timelock.NewRouter()
	router.Register(targetAddr, f.target)
	f.timelock = timelock.NewEngine(timelockAddr)
	f.timelock.SetState(f.tlState)
	f.timelock.SetRouter(router)
	f.timelock.SetNowFunc(clock)
	f.timelock.SetEmitter(f.emitter)
	require.NoError(t, f.timelock.Initialize(governorAddr, common.Address{}, timelock.DefaultDelay))

	f.engine = NewEngine(governorAddr)
	router.Register(governorAddr, f.engine)
	f.engine.SetState(f.state)
	f.engine.SetVotingPower(f.power)
	f.engine.SetTimelock(f.timelock)
	f.engine.SetNowFunc(clock)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetGuardian(guardianAddr)
	f.engine.SetDefaultParams(Params{
		QuorumVotes:       uint256.NewInt(testQuorum),
		ProposalThreshold: uint256.NewInt(testThreshold),
		MaxOperations:     3,
		VotingPeriod:      testPeriod,
	})

	// Powers take effect before the first proposal.
	f.power.set(proposerAddr, f.start-10, testThreshold)
	f.power.set(whaleAddr, f.start-10, testQuorum+1)
	f.power.set(minnowAddr, f.start-10, 5)
	return f
}

func (f *fixture) unix() uint64 { return uint64(f.now.Unix()) }

func (f *fixture) setUnix(ts uint64) { f.now = time.Unix(int64(ts), 0).UTC() }

func (f *fixture) advance(seconds uint64) { f.setUnix(f.unix() + seconds) }

func singleAction(signature string) ([]common.Address, []*uint256.Int, []string, [][]byte) {
	return []common.Address{targetAddr}, []*uint256.Int{uint256.NewInt(0)}, []string{signature}, [][]byte{{0x01}}
}

func (f *fixture) propose(t *testing.T, proposer common.Address, signature string) uint64 {
	t.Helper()
	targets, values, sigs, datas := singleAction(signature)
	id, err := f.engine.Propose(proposer, targets, values, sigs, datas, "do the thing")
	require.NoError(t, err)
	return id
}

func (f *fixture) requireState(t *testing.T, id uint64, want ProposalState) {
	t.Helper()
	got, err := f.engine.State(id)
	require.NoError(t, err)
	require.Equal(t, want, got, "state %s, want %s", got, want)
}

func TestDeriveStateIsPure(t *testing.T) {
	p := &Proposal{StartTime: 100, EndTime: 200, ForVotes: uint256.NewInt(10), AgainstVotes: uint256.NewInt(1)}
	quorum := uint256.NewInt(10)
	cases := []struct {
		name  string
		now   uint64
		eta   uint64
		flags func(*Proposal)
		want  ProposalState
	}{
		{name: "pending at start", now: 100, want: ProposalStatePending},
		{name: "active after start", now: 101, want: ProposalStateActive},
		{name: "active at end", now: 200, want: ProposalStateActive},
		{name: "succeeded after end", now: 201, want: ProposalStateSucceeded},
		{name: "queued before grace", now: 399, eta: 300, want: ProposalStateQueued},
		{name: "expired at grace", now: 400, eta: 300, want: ProposalStateExpired},
		{name: "canceled outranks all", now: 50, flags: func(p *Proposal) { p.Canceled = true }, want: ProposalStateCanceled},
		{name: "executed outranks expiry", now: 10_000, eta: 300, flags: func(p *Proposal) { p.Executed = true }, want: ProposalStateExecuted},
		{name: "tie defeats", now: 201, flags: func(p *Proposal) { p.AgainstVotes = uint256.NewInt(10) }, want: ProposalStateDefeated},
		{name: "below quorum defeats", now: 201, flags: func(p *Proposal) { p.ForVotes = uint256.NewInt(9); p.AgainstVotes = uint256.NewInt(0) }, want: ProposalStateDefeated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proposal := p.Copy()
			proposal.Eta = tc.eta
			if tc.flags != nil {
				tc.flags(proposal)
			}
			first := deriveState(proposal, tc.now, quorum, 100)
			second := deriveState(proposal, tc.now, quorum, 100)
			require.Equal(t, tc.want, first)
			require.Equal(t, first, second)
		})
	}
}

func TestProposeValidation(t *testing.T) {
	f := newFixture(t)
	targets, values, sigs, datas := singleAction("a()")

	_, err := f.engine.Propose(minnowAddr, targets, values, sigs, datas, "")
	require.True(t, errors.Is(err, coreerrors.ErrThreshold))

	_, err = f.engine.Propose(proposerAddr, targets, values, sigs, [][]byte{}, "")
	require.True(t, errors.Is(err, coreerrors.ErrArityMismatch))

	_, err = f.engine.Propose(proposerAddr, nil, nil, nil, nil, "")
	require.True(t, errors.Is(err, coreerrors.ErrEmptyActions))

	many := []common.Address{targetAddr, targetAddr, targetAddr, targetAddr}
	manyValues := []*uint256.Int{nil, nil, nil, nil}
	manySigs := []string{"a()", "b()", "c()", "d()"}
	manyData := [][]byte{nil, nil, nil, nil}
	_, err = f.engine.Propose(proposerAddr, many, manyValues, manySigs, manyData, "")
	require.True(t, errors.Is(err, coreerrors.ErrEmptyActions))

	id := f.propose(t, proposerAddr, "a()")
	require.Equal(t, uint64(1), id)
	f.requireState(t, id, ProposalStatePending)

	proposal, err := f.engine.Proposal(id)
	require.NoError(t, err)
	require.Equal(t, f.unix(), proposal.StartTime)
	require.Equal(t, f.unix()+testPeriod, proposal.EndTime)
	require.True(t, proposal.ForVotes.IsZero())

	_, err = f.engine.Propose(proposerAddr, targets, values, sigs, datas, "")
	require.True(t, errors.Is(err, coreerrors.ErrDuplicateLiveProposal))
	require.True(t, errors.Is(err, coreerrors.ErrState))

	f.advance(1)
	f.requireState(t, id, ProposalStateActive)
	_, err = f.engine.Propose(proposerAddr, targets, values, sigs, datas, "")
	require.True(t, errors.Is(err, coreerrors.ErrDuplicateLiveProposal))

	f.advance(testPeriod)
	f.requireState(t, id, ProposalStateDefeated)
	second := f.propose(t, proposerAddr, "b()")
	require.Equal(t, uint64(2), second)

	latest, err := f.engine.LatestProposalID(proposerAddr)
	require.NoError(t, err)
	require.Equal(t, second, latest)
	count, err := f.engine.ProposalCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestStateUnknownProposal(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.State(42)
	require.True(t, errors.Is(err, coreerrors.ErrNotFound))
	err = f.engine.CastVote(whaleAddr, 42, true)
	require.True(t, errors.Is(err, coreerrors.ErrNotFound))
}

func TestNoVotesIsDefeated(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t, proposerAddr, "a()")
	f.advance(testPeriod + 1)
	f.requireState(t, id, ProposalStateDefeated)

	_, err := f.engine.Queue(id)
	require.True(t, errors.Is(err, coreerrors.ErrState))
}

func TestVotingRules(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t, proposerAddr, "a()")

	err := f.engine.CastVote(whaleAddr, id, true)
	require.True(t, errors.Is(err, coreerrors.ErrVotingClosed))

	f.advance(1)
	// Power gained after the proposal start does not count.
	f.power.set(minnowAddr, f.start+1, 1_000)
	require.NoError(t, f.engine.CastVote(minnowAddr, id, false))
	receipt, err := f.engine.Receipt(id, minnowAddr)
	require.NoError(t, err)
	require.True(t, receipt.HasVoted)
	require.False(t, receipt.Support)
	require.True(t, receipt.Votes.Eq(uint256.NewInt(5)))

	err = f.engine.CastVote(minnowAddr, id, true)
	require.True(t, errors.Is(err, coreerrors.ErrAlreadyVoted))

	require.NoError(t, f.engine.CastVote(whaleAddr, id, true))
	proposal, err := f.engine.Proposal(id)
	require.NoError(t, err)
	require.True(t, proposal.ForVotes.Eq(uint256.NewInt(testQuorum+1)))
	require.True(t, proposal.AgainstVotes.Eq(uint256.NewInt(5)))

	empty, err := f.engine.Receipt(id, guardianAddr)
	require.NoError(t, err)
	require.False(t, empty.HasVoted)

	f.advance(testPeriod)
	err = f.engine.CastVote(guardianAddr, id, true)
	require.True(t, errors.Is(err, coreerrors.ErrVotingClosed))
	f.requireState(t, id, ProposalStateSucceeded)
}

func TestCastVoteBySig(t *testing.T) {
	f := newFixture(t)
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	voter := ethcrypto.PubkeyToAddress(key.PublicKey)
	f.power.set(voter, f.start-10, 50)
	domain := sigverify.Domain{Name: "Governor", ChainID: uint256.NewInt(1), VerifyingContract: governorAddr}
	f.engine.SetDomain(domain)

	id := f.propose(t, proposerAddr, "a()")
	f.advance(1)
	sig, err := sigverify.SignBallot(domain, key, id, true)
	require.NoError(t, err)

	recovered, err := f.engine.CastVoteBySig(id, true, sig)
	require.NoError(t, err)
	require.Equal(t, voter, recovered)
	receipt, err := f.engine.Receipt(id, voter)
	require.NoError(t, err)
	require.True(t, receipt.Votes.Eq(uint256.NewInt(50)))

	_, err = f.engine.CastVoteBySig(id, true, sig)
	require.True(t, errors.Is(err, coreerrors.ErrAlreadyVoted))

	_, err = f.engine.CastVoteBySig(id, true, sig[:10])
	require.True(t, errors.Is(err, coreerrors.ErrInvalidSignature))
}

func (f *fixture) passProposal(t *testing.T, proposer common.Address, signature string) uint64 {
	t.Helper()
	id := f.propose(t, proposer, signature)
	f.advance(1)
	require.NoError(t, f.engine.CastVote(whaleAddr, id, true))
	f.advance(testPeriod)
	f.requireState(t, id, ProposalStateSucceeded)
	return id
}

func TestSucceededQueuedExecuted(t *testing.T) {
	f := newFixture(t)
	id := f.passProposal(t, proposerAddr, "a()")

	err := f.engine.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrState))

	eta, err := f.engine.Queue(id)
	require.NoError(t, err)
	require.Equal(t, f.unix()+timelock.MinimumDelay, eta)
	f.requireState(t, id, ProposalStateQueued)

	f.setUnix(eta - 1)
	err = f.engine.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrTiming))

	f.setUnix(eta)
	require.NoError(t, f.engine.Execute(id))
	f.requireState(t, id, ProposalStateExecuted)
	require.Equal(t, 1, f.target.calls)

	f.advance(timelock.GracePeriod * 2)
	f.requireState(t, id, ProposalStateExecuted)

	err = f.engine.Cancel(proposerAddr, id)
	require.True(t, errors.Is(err, coreerrors.ErrState))

	require.Contains(t, f.emitter.types(), events.TypeProposalExecuted)
	require.Contains(t, f.emitter.types(), events.TypeExecuteTransaction)
}

func TestExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	id := f.passProposal(t, proposerAddr, "a()")
	eta, err := f.engine.Queue(id)
	require.NoError(t, err)

	f.setUnix(eta + timelock.GracePeriod - 1)
	f.requireState(t, id, ProposalStateQueued)
	f.setUnix(eta + timelock.GracePeriod)
	f.requireState(t, id, ProposalStateExpired)
	err = f.engine.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrState))
}

func TestCrossProposalCollision(t *testing.T) {
	f := newFixture(t)
	other := common.HexToAddress("0x00000000000000000000000000000000000000d4")
	f.power.set(other, f.start-10, testThreshold)

	first := f.propose(t, proposerAddr, "a()")
	second := f.propose(t, other, "a()")
	f.advance(1)
	require.NoError(t, f.engine.CastVote(whaleAddr, first, true))
	require.NoError(t, f.engine.CastVote(whaleAddr, second, true))
	f.advance(testPeriod)

	eta, err := f.engine.Queue(first)
	require.NoError(t, err)

	_, err = f.engine.Queue(second)
	require.True(t, errors.Is(err, coreerrors.ErrDuplicateAction))
	f.requireState(t, second, ProposalStateSucceeded)

	f.advance(1)
	secondEta, err := f.engine.Queue(second)
	require.NoError(t, err)
	require.Equal(t, eta+1, secondEta)
}

func TestSameProposalDuplicateActionsCannotQueue(t *testing.T) {
	f := newFixture(t)
	targets := []common.Address{targetAddr, targetAddr}
	values := []*uint256.Int{uint256.NewInt(0), uint256.NewInt(0)}
	sigs := []string{"a()", "a()"}
	datas := [][]byte{{0x01}, {0x01}}
	id, err := f.engine.Propose(proposerAddr, targets, values, sigs, datas, "twice")
	require.NoError(t, err)
	f.advance(1)
	require.NoError(t, f.engine.CastVote(whaleAddr, id, true))
	f.advance(testPeriod)

	_, err = f.engine.Queue(id)
	require.True(t, errors.Is(err, coreerrors.ErrDuplicateAction))
	for hash, queued := range f.tlState.queued {
		require.False(t, queued, "hash %s left queued", hash.Hex())
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	id := f.passProposal(t, proposerAddr, "a()")
	eta, err := f.engine.Queue(id)
	require.NoError(t, err)

	err = f.engine.Cancel(whaleAddr, id)
	require.True(t, errors.Is(err, coreerrors.ErrAuthorization))

	// The guardian may only cancel once the proposer dropped below threshold.
	err = f.engine.Cancel(guardianAddr, id)
	require.True(t, errors.Is(err, coreerrors.ErrAuthorization))
	f.power.set(proposerAddr, f.unix()-5, testThreshold-1)
	require.NoError(t, f.engine.Cancel(guardianAddr, id))
	f.requireState(t, id, ProposalStateCanceled)

	hash, err := timelock.TxHash(timelock.Call{Target: targetAddr, Value: uint256.NewInt(0), Signature: "a()", Data: []byte{0x01}}, eta)
	require.NoError(t, err)
	queued, err := f.timelock.Queued(hash)
	require.NoError(t, err)
	require.False(t, queued)

	f.setUnix(eta)
	err = f.engine.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrState))
}

func TestProposerCancelsPendingProposal(t *testing.T) {
	f := newFixture(t)
	id := f.propose(t, proposerAddr, "a()")
	require.NoError(t, f.engine.Cancel(proposerAddr, id))
	f.requireState(t, id, ProposalStateCanceled)
	// A canceled proposal no longer blocks a new one.
	f.propose(t, proposerAddr, "b()")
}

func TestExecuteFailureLeavesProposalQueued(t *testing.T) {
	f := newFixture(t)
	id := f.passProposal(t, proposerAddr, "a()")
	eta, err := f.engine.Queue(id)
	require.NoError(t, err)
	f.target.fail = true
	f.setUnix(eta)
	err = f.engine.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrExecutionReverted))

	proposal, err := f.engine.Proposal(id)
	require.NoError(t, err)
	require.False(t, proposal.Executed)
}

func TestConfigThroughProposal(t *testing.T) {
	f := newFixture(t)
	data, err := timelock.PackArguments(SignatureConfig, big.NewInt(0), big.NewInt(5), big.NewInt(0), big.NewInt(60))
	require.NoError(t, err)
	id, err := f.engine.Propose(proposerAddr,
		[]common.Address{governorAddr}, []*uint256.Int{nil}, []string{SignatureConfig}, [][]byte{data}, "config")
	require.NoError(t, err)
	f.advance(1)
	require.NoError(t, f.engine.CastVote(whaleAddr, id, true))
	f.advance(testPeriod)
	eta, err := f.engine.Queue(id)
	require.NoError(t, err)
	f.setUnix(eta)
	require.NoError(t, f.engine.Execute(id))

	params, err := f.engine.Params()
	require.NoError(t, err)
	require.True(t, params.QuorumVotes.Eq(uint256.NewInt(testQuorum)))
	require.True(t, params.ProposalThreshold.Eq(uint256.NewInt(5)))
	require.Equal(t, uint64(3), params.MaxOperations)
	require.Equal(t, uint64(60), params.VotingPeriod)

	// Direct calls bypassing the timelock are rejected.
	_, err = f.engine.Invoke(proposerAddr, nil, append(timelock.Selector(SignatureConfig), data...))
	require.True(t, errors.Is(err, coreerrors.ErrAuthorization))
}

func TestAcceptAdminRequiresGuardian(t *testing.T) {
	f := newFixture(t)
	f.tlState.admin = guardianAddr
	f.tlState.pending = governorAddr

	err := f.engine.AcceptAdmin(proposerAddr)
	require.True(t, errors.Is(err, coreerrors.ErrAuthorization))
	require.NoError(t, f.engine.AcceptAdmin(guardianAddr))
	admin, err := f.timelock.Admin()
	require.NoError(t, err)
	require.Equal(t, governorAddr, admin)
}

func TestProposalStateNames(t *testing.T) {
	for state := ProposalStatePending; state <= ProposalStateExecuted; state++ {
		parsed, ok := ParseProposalState(state.String())
		require.True(t, ok)
		require.Equal(t, state, parsed)
	}
	require.Equal(t, "unknown", ProposalState(99).String())
}
