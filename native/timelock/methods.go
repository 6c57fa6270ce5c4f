package timelock

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "govchain/core/errors"
)

// Handler processes a decoded call. Arguments are in declaration order using
// the go-ethereum ABI representations (*big.Int for uintN, common.Address,
// string, []byte, bool).
type Handler func(sender common.Address, value *uint256.Int, args []interface{}) ([]byte, error)

type method struct {
	signature string
	inputs    abi.Arguments
	handler   Handler
}

// MethodTable dispatches call data to handlers keyed by function selector.
type MethodTable struct {
	methods map[[4]byte]method
}

// NewMethodTable constructs an empty method table.
func NewMethodTable() *MethodTable {
	return &MethodTable{methods: make(map[[4]byte]method)}
}

// Register adds a handler for a function signature such as
// "setDelay(uint256)".
func (t *MethodTable) Register(signature string, handler Handler) error {
	name, types, err := splitSignature(signature)
	if err != nil {
		return err
	}
	inputs, err := parseArguments(types)
	if err != nil {
		return fmt.Errorf("timelock: method %s: %w", name, err)
	}
	var selector [4]byte
	copy(selector[:], Selector(signature))
	if _, exists := t.methods[selector]; exists {
		return fmt.Errorf("timelock: method %s already registered", signature)
	}
	t.methods[selector] = method{signature: signature, inputs: inputs, handler: handler}
	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// static tables built during construction.
func (t *MethodTable) MustRegister(signature string, handler Handler) {
	if err := t.Register(signature, handler); err != nil {
		panic(err)
	}
}

// Dispatch decodes callData and invokes the matching handler.
func (t *MethodTable) Dispatch(sender common.Address, value *uint256.Int, callData []byte) ([]byte, error) {
	if len(callData) < 4 {
		return nil, fmt.Errorf("timelock: call data too short: %w", coreerrors.ErrInvalidArgument)
	}
	var selector [4]byte
	copy(selector[:], callData[:4])
	m, ok := t.methods[selector]
	if !ok {
		return nil, fmt.Errorf("timelock: unknown selector 0x%x: %w", selector, coreerrors.ErrInvalidArgument)
	}
	args, err := m.inputs.Unpack(callData[4:])
	if err != nil {
		return nil, fmt.Errorf("timelock: decode %s: %v: %w", m.signature, err, coreerrors.ErrInvalidArgument)
	}
	if value == nil {
		value = new(uint256.Int)
	}
	return m.handler(sender, value, args)
}

// PackArguments ABI-encodes values for the argument list of signature. It is
// the inverse of the decoding performed by Dispatch and is used to build
// proposal call data.
func PackArguments(signature string, values ...interface{}) ([]byte, error) {
	_, types, err := splitSignature(signature)
	if err != nil {
		return nil, err
	}
	args, err := parseArguments(types)
	if err != nil {
		return nil, err
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("timelock: encode %s: %w", signature, err)
	}
	return packed, nil
}

func splitSignature(signature string) (string, []string, error) {
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return "", nil, fmt.Errorf("timelock: malformed signature %q", signature)
	}
	name := signature[:open]
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return name, nil, nil
	}
	return name, strings.Split(inner, ","), nil
}

func parseArguments(types []string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0, len(types))
	for _, raw := range types {
		typ, err := abi.NewType(strings.TrimSpace(raw), "", nil)
		if err != nil {
			return nil, fmt.Errorf("timelock: abi type %q: %w", raw, err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args, nil
}
