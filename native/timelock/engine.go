// Package timelock implements the delayed execution queue. Calls must be
// queued by the admin at least Delay seconds in advance and can be executed
// during a grace window starting at their eta.
package timelock

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
)

const (
	day = uint64(24 * 60 * 60)
	// GracePeriod is how long a call stays executable after its eta.
	GracePeriod = 14 * day
	// MinimumDelay is the smallest configurable queueing delay.
	MinimumDelay = 2 * day
	// MaximumDelay is the largest configurable queueing delay.
	MaximumDelay = 30 * day
	// DefaultDelay is applied when no delay has been configured.
	DefaultDelay = MinimumDelay
)

const (
	SignatureSetDelay        = "setDelay(uint256)"
	SignatureSetPendingAdmin = "setPendingAdmin(address)"
)

type timelockState interface {
	TimelockQueued(hash common.Hash) (bool, error)
	TimelockSetQueued(hash common.Hash, queued bool) error
	TimelockAdmin() (common.Address, error)
	TimelockSetAdmin(admin common.Address) error
	TimelockPendingAdmin() (common.Address, error)
	TimelockSetPendingAdmin(pending common.Address) error
	TimelockDelay() (uint64, bool, error)
	TimelockSetDelay(delay uint64) error
}

// Engine is the timelock queue. It is also a Target so that administrative
// changes can only be made through calls it executes itself.
type Engine struct {
	address common.Address
	state   timelockState
	router  *Router
	emitter events.Emitter
	nowFn   func() time.Time
	methods *MethodTable
}

// NewEngine constructs a timelock identified by address.
func NewEngine(address common.Address) *Engine {
	e := &Engine{
		address: address,
		emitter: events.NoopEmitter{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	e.methods = NewMethodTable()
	e.methods.MustRegister(SignatureSetDelay, e.handleSetDelay)
	e.methods.MustRegister(SignatureSetPendingAdmin, e.handleSetPendingAdmin)
	return e
}

// Address returns the identity the timelock uses when invoking targets.
func (e *Engine) Address() common.Address { return e.address }

// SetState wires the engine to the state backend.
func (e *Engine) SetState(state timelockState) { e.state = state }

// SetRouter configures the router used to resolve call targets.
func (e *Engine) SetRouter(router *Router) { e.router = router }

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
		return fmt.Errorf("timelock: state not configured")
	}
	return nil
}

// Initialize installs the admin, optional pending admin and delay. It is a
// no-op when an admin has already been recorded.
func (e *Engine) Initialize(admin, pendingAdmin common.Address, delay uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	current, err := e.state.TimelockAdmin()
	if err != nil {
		return err
	}
	if current != (common.Address{}) {
		return nil
	}
	if admin == (common.Address{}) {
		return fmt.Errorf("timelock: admin must not be zero: %w", coreerrors.ErrInvalidArgument)
	}
	if err := validateDelay(delay); err != nil {
		return err
	}
	if err := e.state.TimelockSetAdmin(admin); err != nil {
		return err
	}
	if err := e.state.TimelockSetDelay(delay); err != nil {
		return err
	}
	if pendingAdmin != (common.Address{}) {
		if err := e.state.TimelockSetPendingAdmin(pendingAdmin); err != nil {
			return err
		}
	}
	return nil
}

func validateDelay(delay uint64) error {
	if delay < MinimumDelay {
		return fmt.Errorf("timelock: delay must exceed minimum delay: %w", coreerrors.ErrInvalidArgument)
	}
	if delay > MaximumDelay {
		return fmt.Errorf("timelock: delay must not exceed maximum delay: %w", coreerrors.ErrInvalidArgument)
	}
	return nil
}

// Admin returns the account allowed to queue, cancel and execute calls.
func (e *Engine) Admin() (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	return e.state.TimelockAdmin()
}

// PendingAdmin returns the account that may accept the admin role.
func (e *Engine) PendingAdmin() (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	return e.state.TimelockPendingAdmin()
}

// Delay returns the current queueing delay in seconds.
func (e *Engine) Delay() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	delay, ok, err := e.state.TimelockDelay()
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultDelay, nil
	}
	return delay, nil
}

// GracePeriod returns the execution window after eta.
func (e *Engine) GracePeriod() uint64 { return GracePeriod }

// Queued reports whether the call identified by hash is queued.
func (e *Engine) Queued(hash common.Hash) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.TimelockQueued(hash)
}

func (e *Engine) requireAdmin(caller common.Address, op string) error {
	admin, err := e.state.TimelockAdmin()
	if err != nil {
		return err
	}
	if caller != admin {
		return fmt.Errorf("timelock: %s: call must come from admin: %w", op, coreerrors.ErrAuthorization)
	}
	return nil
}

func (e *Engine) emitTransaction(kind string, hash common.Hash, call Call, eta uint64) {
	e.emitter.Emit(events.TimelockTransaction{
		Kind:      kind,
		TxHash:    hash,
		Target:    call.Target,
		Value:     call.value(),
		Signature: call.Signature,
		Data:      append([]byte(nil), call.Data...),
		Eta:       eta,
	})
}

// QueueTransaction schedules call for execution at eta.
func (e *Engine) QueueTransaction(caller common.Address, call Call, eta uint64) (common.Hash, error) {
	if err := e.ready(); err != nil {
		return common.Hash{}, err
	}
	if err := e.requireAdmin(caller, "queueTransaction"); err != nil {
		return common.Hash{}, err
	}
	delay, err := e.Delay()
	if err != nil {
		return common.Hash{}, err
	}
	if eta < e.now()+delay {
		return common.Hash{}, fmt.Errorf("timelock: estimated execution block must satisfy delay: %w", coreerrors.ErrTiming)
	}
	hash, err := TxHash(call, eta)
	if err != nil {
		return common.Hash{}, err
	}
	queued, err := e.state.TimelockQueued(hash)
	if err != nil {
		return common.Hash{}, err
	}
	if queued {
		return common.Hash{}, fmt.Errorf("timelock: transaction %s: %w", hash.Hex(), coreerrors.ErrDuplicateAction)
	}
	if err := e.state.TimelockSetQueued(hash, true); err != nil {
		return common.Hash{}, err
	}
	e.emitTransaction(events.TypeQueueTransaction, hash, call, eta)
	return hash, nil
}

// CancelTransaction clears the queued flag of call at eta. Cancelling a call
// that is not queued succeeds without effect.
func (e *Engine) CancelTransaction(caller common.Address, call Call, eta uint64) (common.Hash, error) {
	if err := e.ready(); err != nil {
		return common.Hash{}, err
	}
	if err := e.requireAdmin(caller, "cancelTransaction"); err != nil {
		return common.Hash{}, err
	}
	hash, err := TxHash(call, eta)
	if err != nil {
		return common.Hash{}, err
	}
	if err := e.state.TimelockSetQueued(hash, false); err != nil {
		return common.Hash{}, err
	}
	e.emitTransaction(events.TypeCancelTransaction, hash, call, eta)
	return hash, nil
}

// ExecuteTransaction runs a queued call whose eta has been reached and has not
// gone stale. The queued flag is cleared before the target is invoked.
func (e *Engine) ExecuteTransaction(caller common.Address, call Call, eta uint64) ([]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireAdmin(caller, "executeTransaction"); err != nil {
		return nil, err
	}
	hash, err := TxHash(call, eta)
	if err != nil {
		return nil, err
	}
	queued, err := e.state.TimelockQueued(hash)
	if err != nil {
		return nil, err
	}
	if !queued {
		return nil, fmt.Errorf("timelock: transaction %s: %w", hash.Hex(), coreerrors.ErrNotQueued)
	}
	now := e.now()
	if now < eta {
		return nil, fmt.Errorf("timelock: transaction hasn't surpassed time lock: %w", coreerrors.ErrTiming)
	}
	if now > eta+GracePeriod {
		return nil, fmt.Errorf("timelock: transaction %s: %w", hash.Hex(), coreerrors.ErrStale)
	}
	if err := e.state.TimelockSetQueued(hash, false); err != nil {
		return nil, err
	}
	target, ok := e.resolve(call.Target)
	if !ok {
		return nil, fmt.Errorf("timelock: no target at %s: %w", call.Target.Hex(), coreerrors.ErrExecutionReverted)
	}
	result, err := target.Invoke(e.address, call.value(), call.CallData())
	if err != nil {
		return nil, fmt.Errorf("timelock: %s: %v: %w", call.Signature, err, coreerrors.ErrExecutionReverted)
	}
	e.emitTransaction(events.TypeExecuteTransaction, hash, call, eta)
	return result, nil
}

func (e *Engine) resolve(addr common.Address) (Target, bool) {
	if addr == e.address {
		return e, true
	}
	return e.router.Route(addr)
}

// AcceptAdmin completes an admin handover. Only the pending admin may call it.
func (e *Engine) AcceptAdmin(caller common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	pending, err := e.state.TimelockPendingAdmin()
	if err != nil {
		return err
	}
	if pending == (common.Address{}) || caller != pending {
		return fmt.Errorf("timelock: acceptAdmin: call must come from pendingAdmin: %w", coreerrors.ErrAuthorization)
	}
	if err := e.state.TimelockSetAdmin(caller); err != nil {
		return err
	}
	if err := e.state.TimelockSetPendingAdmin(common.Address{}); err != nil {
		return err
	}
	e.emitter.Emit(events.NewAdmin{Admin: caller})
	return nil
}

// Invoke implements Target for calls the timelock executes against itself.
func (e *Engine) Invoke(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if sender != e.address {
		return nil, fmt.Errorf("timelock: call must come from timelock: %w", coreerrors.ErrAuthorization)
	}
	return e.methods.Dispatch(sender, value, callData)
}

func (e *Engine) handleSetDelay(_ common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	raw, ok := args[0].(*big.Int)
	if !ok || !raw.IsUint64() {
		return nil, fmt.Errorf("timelock: setDelay: invalid delay: %w", coreerrors.ErrInvalidArgument)
	}
	delay := raw.Uint64()
	if err := validateDelay(delay); err != nil {
		return nil, err
	}
	if err := e.state.TimelockSetDelay(delay); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.NewDelay{Delay: delay})
	return nil, nil
}

func (e *Engine) handleSetPendingAdmin(_ common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	pending, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("timelock: setPendingAdmin: invalid address: %w", coreerrors.ErrInvalidArgument)
	}
	if err := e.state.TimelockSetPendingAdmin(pending); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.NewPendingAdmin{PendingAdmin: pending})
	return nil, nil
}
