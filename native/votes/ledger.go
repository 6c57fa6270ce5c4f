// Package votes maintains delegated voting power. Every account carries an
// append-only list of checkpoints so that the power held at any past moment
// can be answered with a binary search.
package votes

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/sigverify"
)

type ledgerState interface {
	VotesDelegate(account common.Address) (common.Address, error)
	VotesSetDelegate(account common.Address, delegate common.Address) error
	VotesNonce(account common.Address) (uint64, error)
	VotesSetNonce(account common.Address, nonce uint64) error
	VotesCheckpointCount(account common.Address) (uint64, error)
	VotesCheckpoint(account common.Address, index uint64) (*Checkpoint, error)
	VotesPutCheckpoint(account common.Address, index uint64, checkpoint *Checkpoint) error
}

// BalanceSource exposes token balances to the delegation registry.
type BalanceSource interface {
	BalanceOf(account common.Address) (*uint256.Int, error)
}

// Engine implements the voting power ledger and the delegation registry.
type Engine struct {
	state    ledgerState
	balances BalanceSource
	emitter  events.Emitter
	nowFn    func() time.Time
	domain   sigverify.Domain
}

// NewEngine constructs a ledger with default no-op dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetState wires the engine to the state backend.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetBalances configures the token balance source consulted on delegation.
func (e *Engine) SetBalances(balances BalanceSource) { e.balances = balances }

// SetDomain configures the signing domain used by DelegateBySig.
func (e *Engine) SetDomain(domain sigverify.Domain) { e.domain = domain }

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
		return fmt.Errorf("votes: state not configured")
	}
	return nil
}

// PriorPower returns the voting power held by account at atTime. Only times
// strictly before the current time can be answered.
func (e *Engine) PriorPower(account common.Address, atTime uint64) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if atTime >= e.now() {
		return nil, fmt.Errorf("votes: power at %d not yet determined: %w", atTime, coreerrors.ErrTiming)
	}
	count, err := e.state.VotesCheckpointCount(account)
	if err != nil {
		return nil, err
	}
	return searchCheckpoints(count, func(index uint64) (*Checkpoint, error) {
		return e.state.VotesCheckpoint(account, index)
	}, atTime)
}

// searchCheckpoints returns the power of the latest checkpoint whose AtTime is
// not after atTime. The sequence is accessed through at and must be ordered by
// strictly increasing AtTime.
func searchCheckpoints(count uint64, at func(uint64) (*Checkpoint, error), atTime uint64) (*uint256.Int, error) {
	if count == 0 {
		return new(uint256.Int), nil
	}
	latest, err := at(count - 1)
	if err != nil {
		return nil, err
	}
	if latest.AtTime <= atTime {
		return latest.power(), nil
	}
	first, err := at(0)
	if err != nil {
		return nil, err
	}
	if first.AtTime > atTime {
		return new(uint256.Int), nil
	}
	lower, upper := uint64(0), count-1
	for upper > lower {
		center := upper - (upper-lower)/2
		cp, err := at(center)
		if err != nil {
			return nil, err
		}
		switch {
		case cp.AtTime == atTime:
			return cp.power(), nil
		case cp.AtTime < atTime:
			lower = center
		default:
			upper = center - 1
		}
	}
	cp, err := at(lower)
	if err != nil {
		return nil, err
	}
	return cp.power(), nil
}

// CurrentPower returns the power recorded in the latest checkpoint.
func (e *Engine) CurrentPower(account common.Address) (*uint256.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	count, err := e.state.VotesCheckpointCount(account)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return new(uint256.Int), nil
	}
	cp, err := e.state.VotesCheckpoint(account, count-1)
	if err != nil {
		return nil, err
	}
	return cp.power(), nil
}

// Checkpoints returns every checkpoint recorded for account in order.
func (e *Engine) Checkpoints(account common.Address) ([]*Checkpoint, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	count, err := e.state.VotesCheckpointCount(account)
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, count)
	for i := uint64(0); i < count; i++ {
		cp, err := e.state.VotesCheckpoint(account, i)
		if err != nil {
			return nil, err
		}
		out = append(out, cp.Copy())
	}
	return out, nil
}

// writeCheckpoint records newPower for delegate at the current time. Several
// updates within the same second collapse into one checkpoint.
func (e *Engine) writeCheckpoint(delegate common.Address, oldPower, newPower *uint256.Int) error {
	now := e.now()
	count, err := e.state.VotesCheckpointCount(delegate)
	if err != nil {
		return err
	}
	index := count
	if count > 0 {
		last, err := e.state.VotesCheckpoint(delegate, count-1)
		if err != nil {
			return err
		}
		if last.AtTime > now {
			return fmt.Errorf("votes: checkpoint at %d precedes latest %d: %w", now, last.AtTime, coreerrors.ErrTiming)
		}
		if last.AtTime == now {
			index = count - 1
		}
	}
	cp := &Checkpoint{AtTime: now, Power: new(uint256.Int).Set(newPower)}
	if err := e.state.VotesPutCheckpoint(delegate, index, cp); err != nil {
		return err
	}
	e.emitter.Emit(events.DelegateVotesChanged{
		Delegate:     delegate,
		PreviousVote: new(uint256.Int).Set(oldPower),
		NewVote:      new(uint256.Int).Set(newPower),
	})
	return nil
}

// moveDelegates shifts amount of power from src to dst. A zero address on
// either side is skipped.
func (e *Engine) moveDelegates(src, dst common.Address, amount *uint256.Int) error {
	if src == dst || amount == nil || amount.IsZero() {
		return nil
	}
	if src != (common.Address{}) {
		old, err := e.CurrentPower(src)
		if err != nil {
			return err
		}
		updated, underflow := new(uint256.Int).SubOverflow(old, amount)
		if underflow {
			return fmt.Errorf("votes: power of %s underflows: %w", src.Hex(), coreerrors.ErrState)
		}
		if err := e.writeCheckpoint(src, old, updated); err != nil {
			return err
		}
	}
	if dst != (common.Address{}) {
		old, err := e.CurrentPower(dst)
		if err != nil {
			return err
		}
		updated, overflow := new(uint256.Int).AddOverflow(old, amount)
		if overflow {
			return fmt.Errorf("votes: power of %s overflows: %w", dst.Hex(), coreerrors.ErrState)
		}
		if err := e.writeCheckpoint(dst, old, updated); err != nil {
			return err
		}
	}
	return nil
}
