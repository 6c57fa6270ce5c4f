package state

import "github.com/ethereum/go-ethereum/common"

// TimelockQueued reports whether the call identified by hash is queued.
func (m *Manager) TimelockQueued(hash common.Hash) (bool, error) {
	var queued bool
	if _, err := m.KVGet(prefixed(timelockQueuedPrefix, hash.Bytes()), &queued); err != nil {
		return false, err
	}
	return queued, nil
}

// TimelockSetQueued sets the queued flag of hash.
func (m *Manager) TimelockSetQueued(hash common.Hash, queued bool) error {
	return m.KVPut(prefixed(timelockQueuedPrefix, hash.Bytes()), queued)
}

func (m *Manager) TimelockAdmin() (common.Address, error) { return m.getAddress(timelockAdminKey) }

func (m *Manager) TimelockSetAdmin(admin common.Address) error {
	return m.KVPut(timelockAdminKey, admin)
}

func (m *Manager) TimelockPendingAdmin() (common.Address, error) {
	return m.getAddress(timelockPendingKey)
}

func (m *Manager) TimelockSetPendingAdmin(pending common.Address) error {
	return m.KVPut(timelockPendingKey, pending)
}

// TimelockDelay returns the configured delay and whether one was stored.
func (m *Manager) TimelockDelay() (uint64, bool, error) { return m.getUint64(timelockDelayKey) }

func (m *Manager) TimelockSetDelay(delay uint64) error { return m.KVPut(timelockDelayKey, delay) }
