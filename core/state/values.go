package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (m *Manager) getAddress(key []byte) (common.Address, error) {
	var addr common.Address
	if _, err := m.KVGet(key, &addr); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

func (m *Manager) getUint64(key []byte) (uint64, bool, error) {
	var v uint64
	ok, err := m.KVGet(key, &v)
	if err != nil {
		return 0, false, err
	}
	return v, ok, nil
}

func (m *Manager) getAmount(key []byte) (*uint256.Int, error) {
	amount := new(uint256.Int)
	if _, err := m.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) putAmount(key []byte, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return m.KVPut(key, amount)
}
