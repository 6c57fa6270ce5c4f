package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/native/votes"
)

// VotesDelegate returns the delegate assigned to account.
func (m *Manager) VotesDelegate(account common.Address) (common.Address, error) {
	return m.getAddress(addressKey(votesDelegatePrefix, account))
}

// VotesSetDelegate records the delegate assigned to account.
func (m *Manager) VotesSetDelegate(account, delegate common.Address) error {
	return m.KVPut(addressKey(votesDelegatePrefix, account), delegate)
}

// VotesNonce returns the next delegation signature nonce of account.
func (m *Manager) VotesNonce(account common.Address) (uint64, error) {
	nonce, _, err := m.getUint64(addressKey(votesNoncePrefix, account))
	return nonce, err
}

// VotesSetNonce stores the next delegation signature nonce of account.
func (m *Manager) VotesSetNonce(account common.Address, nonce uint64) error {
	return m.KVPut(addressKey(votesNoncePrefix, account), nonce)
}

// VotesCheckpointCount returns how many checkpoints account has.
func (m *Manager) VotesCheckpointCount(account common.Address) (uint64, error) {
	count, _, err := m.getUint64(addressKey(votesCheckpointCountPrefix, account))
	return count, err
}

type storedCheckpoint struct {
	AtTime uint64
	Power  *uint256.Int
}

// VotesCheckpoint returns checkpoint index of account.
func (m *Manager) VotesCheckpoint(account common.Address, index uint64) (*votes.Checkpoint, error) {
	var stored storedCheckpoint
	ok, err := m.KVGet(prefixed(votesCheckpointPrefix, account.Bytes(), uint64Bytes(index)), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state: checkpoint %d of %s missing", index, account.Hex())
	}
	if stored.Power == nil {
		stored.Power = new(uint256.Int)
	}
	return &votes.Checkpoint{AtTime: stored.AtTime, Power: stored.Power}, nil
}

// VotesPutCheckpoint overwrites checkpoint index of account or appends it when
// index equals the current count.
func (m *Manager) VotesPutCheckpoint(account common.Address, index uint64, checkpoint *votes.Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("state: checkpoint must not be nil")
	}
	count, err := m.VotesCheckpointCount(account)
	if err != nil {
		return err
	}
	if index > count {
		return fmt.Errorf("state: checkpoint index %d beyond count %d", index, count)
	}
	stored := storedCheckpoint{AtTime: checkpoint.AtTime, Power: checkpoint.Power}
	if stored.Power == nil {
		stored.Power = new(uint256.Int)
	}
	if err := m.KVPut(prefixed(votesCheckpointPrefix, account.Bytes(), uint64Bytes(index)), &stored); err != nil {
		return err
	}
	if index == count {
		return m.KVPut(addressKey(votesCheckpointCountPrefix, account), count+1)
	}
	return nil
}
