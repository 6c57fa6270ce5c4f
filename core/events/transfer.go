package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/core/types"
)

const (
	// TypeTransfer is emitted for governance token balance movements. Mints
	// use the zero address as the source.
	TypeTransfer = "token.transfer"
	// TypeMinterChanged is emitted when the mint authority is rotated.
	TypeMinterChanged = "token.minter_changed"
)

type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"from":   formatAddress(e.From),
		"to":     formatAddress(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type MinterChanged struct {
	OldMinter common.Address
	NewMinter common.Address
}

func (MinterChanged) EventType() string { return TypeMinterChanged }

func (e MinterChanged) Event() *types.Event {
	return &types.Event{Type: TypeMinterChanged, Attributes: map[string]string{
		"oldMinter": formatAddress(e.OldMinter),
		"newMinter": formatAddress(e.NewMinter),
	}}
}
