package events

import (
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/core/types"
)

const (
	TypeQueueTransaction   = "timelock.queue_transaction"
	TypeCancelTransaction  = "timelock.cancel_transaction"
	TypeExecuteTransaction = "timelock.execute_transaction"
	TypeNewAdmin           = "timelock.new_admin"
	TypeNewPendingAdmin    = "timelock.new_pending_admin"
	TypeNewDelay           = "timelock.new_delay"
)

// TimelockTransaction describes a queue, cancel or execute action on the
// timelock. Kind selects which of the three event types is reported.
type TimelockTransaction struct {
	Kind      string
	TxHash    common.Hash
	Target    common.Address
	Value     *uint256.Int
	Signature string
	Data      []byte
	Eta       uint64
}

func (e TimelockTransaction) EventType() string { return e.Kind }

func (e TimelockTransaction) Event() *types.Event {
	return &types.Event{Type: e.Kind, Attributes: map[string]string{
		"txHash":    e.TxHash.Hex(),
		"target":    formatAddress(e.Target),
		"value":     formatAmount(e.Value),
		"signature": e.Signature,
		"data":      "0x" + hex.EncodeToString(e.Data),
		"eta":       formatUint(e.Eta),
	}}
}

type NewAdmin struct {
	Admin common.Address
}

func (NewAdmin) EventType() string { return TypeNewAdmin }

func (e NewAdmin) Event() *types.Event {
	return &types.Event{Type: TypeNewAdmin, Attributes: map[string]string{"admin": formatAddress(e.Admin)}}
}

type NewPendingAdmin struct {
	PendingAdmin common.Address
}

func (NewPendingAdmin) EventType() string { return TypeNewPendingAdmin }

func (e NewPendingAdmin) Event() *types.Event {
	return &types.Event{Type: TypeNewPendingAdmin, Attributes: map[string]string{"pendingAdmin": formatAddress(e.PendingAdmin)}}
}

type NewDelay struct {
	Delay uint64
}

func (NewDelay) EventType() string { return TypeNewDelay }

func (e NewDelay) Event() *types.Event {
	return &types.Event{Type: TypeNewDelay, Attributes: map[string]string{"delay": formatUint(e.Delay)}}
}
