package core

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/bank"
	"govchain/native/governance"
	"govchain/native/params"
	"govchain/native/timelock"
	"govchain/storage"
)

var (
	governorAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	timelockAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	tokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	paramsAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a4")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	minter       = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type captureEmitter struct{ events []events.Event }

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func tokens(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(whole), uint256.NewInt(1_000_000_000_000_000_000))
}

func testConfig() Config {
	return Config{
		ChainID:      1,
		Governor:     governorAddr,
		Timelock:     timelockAddr,
		Token:        tokenAddr,
		Params:       paramsAddr,
		GovernorName: "Governor",
		TokenName:    "Gov",
		Governance:   governance.DefaultParams(),
		Minter:       minter,
		FeeToSetter:  timelockAddr,
		Allocations: []Allocation{
			{Address: alice, Amount: tokens(500_000), SelfDelegate: true},
			{Address: bob, Amount: tokens(1_000)},
		},
	}
}

func newTestNode(t *testing.T) (*Node, *testClock, *captureEmitter, storage.Database) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
	db := storage.NewMemDB()
	node, err := NewNode(db, testConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	sink := &captureEmitter{}
	node.Subscribe(sink)
	return node, clock, sink, db
}

// passProposal drives a proposal from creation to the queued state.
func passProposal(t *testing.T, node *Node, clock *testClock, targets []common.Address, signatures []string, calldatas [][]byte) uint64 {
	t.Helper()
	values := make([]*uint256.Int, len(targets))
	for i := range values {
		values[i] = new(uint256.Int)
	}
	clock.advance(time.Second)
	id, err := node.Propose(alice, targets, values, signatures, calldatas, "update parameters")
	require.NoError(t, err)

	clock.advance(time.Second)
	require.NoError(t, node.CastVote(alice, id, true))

	clock.advance(time.Duration(governance.DefaultParams().VotingPeriod) * time.Second)
	state, err := node.ProposalState(id)
	require.NoError(t, err)
	require.Equal(t, governance.ProposalStateSucceeded, state)

	eta, err := node.Queue(id)
	require.NoError(t, err)
	require.Equal(t, node.Now()+timelock.DefaultDelay, eta)
	return id
}

func TestBootstrapAllocatesAndDelegates(t *testing.T) {
	node, _, _, db := newTestNode(t)

	info, err := node.Account(alice)
	require.NoError(t, err)
	require.Equal(t, tokens(500_000), info.Balance)
	require.Equal(t, alice, info.Delegate)
	require.Equal(t, tokens(500_000), info.Votes)

	undelegated, err := node.CurrentVotes(bob)
	require.NoError(t, err)
	require.True(t, undelegated.IsZero())

	supply, err := node.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, tokens(501_000), supply)

	tl, err := node.Timelock()
	require.NoError(t, err)
	require.Equal(t, governorAddr, tl.Admin)
	require.Equal(t, uint64(timelock.DefaultDelay), tl.Delay)
	require.Equal(t, uint64(timelock.GracePeriod), tl.GracePeriod)

	restarted, err := NewNode(db, testConfig())
	require.NoError(t, err)
	supply, err = restarted.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, tokens(501_000), supply)
}

func TestProposalLifecycleUpdatesParameters(t *testing.T) {
	node, clock, sink, _ := newTestNode(t)

	setParam, err := timelock.PackArguments(params.SignatureSetParam, "limits/maxSupply", []byte{0x01})
	require.NoError(t, err)
	setFeeTo, err := timelock.PackArguments(params.SignatureSetFeeTo, bob)
	require.NoError(t, err)

	id := passProposal(t, node, clock,
		[]common.Address{paramsAddr, paramsAddr},
		[]string{params.SignatureSetParam, params.SignatureSetFeeTo},
		[][]byte{setParam, setFeeTo})

	err = node.Execute(id)
	require.True(t, errors.Is(err, coreerrors.ErrTiming), "execute before eta: %v", err)

	clock.advance(time.Duration(timelock.DefaultDelay) * time.Second)
	require.NoError(t, node.Execute(id))

	value, ok, err := node.Param("limits/maxSupply")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0x01}, value)

	feeTo, err := node.FeeTo()
	require.NoError(t, err)
	require.Equal(t, bob, feeTo)

	view, err := node.Proposal(id)
	require.NoError(t, err)
	require.Equal(t, governance.ProposalStateExecuted, view.State)
	require.True(t, view.Proposal.Executed)

	require.Contains(t, sink.types(), events.TypeProposalExecuted)
	require.Contains(t, sink.types(), events.TypeParamChanged)
}

func TestFailedExecutionRollsBackEveryAction(t *testing.T) {
	node, clock, sink, _ := newTestNode(t)

	setParam, err := timelock.PackArguments(params.SignatureSetParam, "limits/maxSupply", []byte{0x02})
	require.NoError(t, err)
	transfer, err := timelock.PackArguments(bank.SignatureTransfer, bob, tokens(1).ToBig())
	require.NoError(t, err)

	id := passProposal(t, node, clock,
		[]common.Address{paramsAddr, tokenAddr},
		[]string{params.SignatureSetParam, bank.SignatureTransfer},
		[][]byte{setParam, transfer})

	view, err := node.Proposal(id)
	require.NoError(t, err)
	firstHash, err := timelock.TxHash(view.Proposal.Actions[0].Call(), view.Proposal.Eta)
	require.NoError(t, err)

	clock.advance(time.Duration(timelock.DefaultDelay) * time.Second)
	before := len(sink.events)
	err = node.Execute(id)
	require.Error(t, err)
	require.True(t, errors.Is(err, coreerrors.ErrExecutionReverted), "unexpected error: %v", err)
	require.Equal(t, before, len(sink.events))

	_, ok, err := node.Param("limits/maxSupply")
	require.NoError(t, err)
	require.False(t, ok)

	queued, err := node.TimelockQueued(firstHash)
	require.NoError(t, err)
	require.True(t, queued)

	state, err := node.ProposalState(id)
	require.NoError(t, err)
	require.Equal(t, governance.ProposalStateQueued, state)
}

func TestRejectedOperationLeavesNoTrace(t *testing.T) {
	node, _, sink, _ := newTestNode(t)
	before := len(sink.events)

	err := node.Transfer(bob, alice, tokens(5_000))
	require.True(t, errors.Is(err, coreerrors.ErrInsufficientBalance), "unexpected error: %v", err)
	require.Equal(t, before, len(sink.events))

	require.NoError(t, node.Transfer(alice, bob, tokens(100)))
	votes, err := node.CurrentVotes(alice)
	require.NoError(t, err)
	require.Equal(t, tokens(499_900), votes)
	require.Contains(t, sink.types(), events.TypeTransfer)
}

func TestClockNeverMovesBackwards(t *testing.T) {
	node, clock, _, _ := newTestNode(t)
	clock.advance(100 * time.Second)
	ahead := node.Now()
	clock.advance(-50 * time.Second)
	require.Equal(t, ahead, node.Now())
}

func TestPriorVotesRejectsPresent(t *testing.T) {
	node, clock, _, _ := newTestNode(t)
	clock.advance(time.Second)
	now := node.Now()

	_, err := node.PriorVotes(alice, now)
	require.True(t, errors.Is(err, coreerrors.ErrTiming))

	power, err := node.PriorVotes(alice, now-1)
	require.NoError(t, err)
	require.Equal(t, tokens(500_000), power)
}
