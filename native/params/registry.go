// Package params stores governed protocol parameters: the fee recipient, the
// account allowed to change it, and free-form named values.
package params

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
	"govchain/core/events"
	"govchain/native/timelock"
)

const (
	// KeyFeeTo stores the fee recipient address.
	KeyFeeTo = "fees/feeTo"
	// KeyFeeToSetter stores the account allowed to change the fee recipient.
	KeyFeeToSetter = "fees/feeToSetter"

	reservedPrefix = "fees/"
)

const (
	SignatureSetFeeTo       = "setFeeTo(address)"
	SignatureSetFeeToSetter = "setFeeToSetter(address)"
	SignatureSetParam       = "setParam(string,bytes)"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter registry.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Registry holds the governed parameters. It is also a timelock target.
type Registry struct {
	state   StoreState
	owner   common.Address
	emitter events.Emitter
	methods *timelock.MethodTable
}

// NewRegistry constructs a registry. Named parameters may only be written by
// owner, normally the timelock.
func NewRegistry(owner common.Address) *Registry {
	r := &Registry{owner: owner, emitter: events.NoopEmitter{}}
	r.methods = timelock.NewMethodTable()
	r.methods.MustRegister(SignatureSetFeeTo, r.handleSetFeeTo)
	r.methods.MustRegister(SignatureSetFeeToSetter, r.handleSetFeeToSetter)
	r.methods.MustRegister(SignatureSetParam, r.handleSetParam)
	return r
}

// SetState wires the registry to the state backend.
func (r *Registry) SetState(state StoreState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets the emitter to a
// no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) withState() (StoreState, error) {
	if r == nil || r.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return r.state, nil
}

func (r *Registry) address(key string) (common.Address, error) {
	state, err := r.withState()
	if err != nil {
		return common.Address{}, err
	}
	raw, ok, err := state.ParamStoreGet(key)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, nil
	}
	return common.BytesToAddress(raw), nil
}

func (r *Registry) write(key string, value []byte) error {
	state, err := r.withState()
	if err != nil {
		return err
	}
	if err := state.ParamStoreSet(key, value); err != nil {
		return err
	}
	r.emitter.Emit(events.ParamChanged{Name: key, Value: append([]byte(nil), value...)})
	return nil
}

// Initialize records the fee-to setter when none is set yet.
func (r *Registry) Initialize(feeToSetter common.Address) error {
	current, err := r.FeeToSetter()
	if err != nil {
		return err
	}
	if current != (common.Address{}) || feeToSetter == (common.Address{}) {
		return nil
	}
	return r.write(KeyFeeToSetter, feeToSetter.Bytes())
}

// FeeTo returns the fee recipient.
func (r *Registry) FeeTo() (common.Address, error) { return r.address(KeyFeeTo) }

// FeeToSetter returns the account allowed to change the fee recipient.
func (r *Registry) FeeToSetter() (common.Address, error) { return r.address(KeyFeeToSetter) }

// Param returns the raw value of a named parameter.
func (r *Registry) Param(name string) ([]byte, bool, error) {
	state, err := r.withState()
	if err != nil {
		return nil, false, err
	}
	return state.ParamStoreGet(strings.TrimSpace(name))
}

func (r *Registry) requireSetter(caller common.Address) error {
	setter, err := r.FeeToSetter()
	if err != nil {
		return err
	}
	if setter == (common.Address{}) || caller != setter {
		return fmt.Errorf("params: forbidden: %w", coreerrors.ErrAuthorization)
	}
	return nil
}

// SetFeeTo updates the fee recipient. Only the fee-to setter may call it.
func (r *Registry) SetFeeTo(caller, feeTo common.Address) error {
	if err := r.requireSetter(caller); err != nil {
		return err
	}
	return r.write(KeyFeeTo, feeTo.Bytes())
}

// SetFeeToSetter hands the setter role to another account.
func (r *Registry) SetFeeToSetter(caller, setter common.Address) error {
	if err := r.requireSetter(caller); err != nil {
		return err
	}
	return r.write(KeyFeeToSetter, setter.Bytes())
}

// SetParam writes a named parameter. Only the owner may call it and the fee
// keys cannot be written this way.
func (r *Registry) SetParam(caller common.Address, name string, value []byte) error {
	if caller != r.owner {
		return fmt.Errorf("params: setParam: %w", coreerrors.ErrAuthorization)
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("params: parameter name required: %w", coreerrors.ErrInvalidArgument)
	}
	if strings.HasPrefix(trimmed, reservedPrefix) {
		return fmt.Errorf("params: parameter %q is reserved: %w", trimmed, coreerrors.ErrInvalidArgument)
	}
	return r.write(trimmed, value)
}

// Invoke implements timelock.Target.
func (r *Registry) Invoke(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error) {
	if value != nil && !value.IsZero() {
		return nil, fmt.Errorf("params: target is not payable: %w", coreerrors.ErrInvalidArgument)
	}
	return r.methods.Dispatch(sender, value, callData)
}

func (r *Registry) handleSetFeeTo(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	addr, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("params: invalid address: %w", coreerrors.ErrInvalidArgument)
	}
	return nil, r.SetFeeTo(sender, addr)
}

func (r *Registry) handleSetFeeToSetter(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	addr, ok := args[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("params: invalid address: %w", coreerrors.ErrInvalidArgument)
	}
	return nil, r.SetFeeToSetter(sender, addr)
}

func (r *Registry) handleSetParam(sender common.Address, _ *uint256.Int, args []interface{}) ([]byte, error) {
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("params: invalid name: %w", coreerrors.ErrInvalidArgument)
	}
	value, ok := args[1].([]byte)
	if !ok {
		return nil, fmt.Errorf("params: invalid value: %w", coreerrors.ErrInvalidArgument)
	}
	return nil, r.SetParam(sender, name, value)
}
