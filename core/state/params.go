package state

import (
	"fmt"
	"strings"
)

// ParamStoreSet writes a raw governed parameter.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("params: name must not be empty")
	}
	return m.KVPut(prefixed(paramStorePrefix, []byte(trimmed)), append([]byte(nil), value...))
}

// ParamStoreGet reads a raw governed parameter.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, fmt.Errorf("params: name must not be empty")
	}
	var value []byte
	ok, err := m.KVGet(prefixed(paramStorePrefix, []byte(trimmed)), &value)
	if err != nil {
		return nil, false, err
	}
	return value, ok, nil
}
