package events

import (
	"encoding/hex"

	"govchain/core/types"
)

// TypeParamChanged is emitted when a governed parameter is written.
const TypeParamChanged = "params.changed"

type ParamChanged struct {
	Name  string
	Value []byte
}

func (ParamChanged) EventType() string { return TypeParamChanged }

func (e ParamChanged) Event() *types.Event {
	return &types.Event{Type: TypeParamChanged, Attributes: map[string]string{
		"name":  e.Name,
		"value": "0x" + hex.EncodeToString(e.Value),
	}}
}
