package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/native/governance"
)

// GovernanceProposalCount returns the number of proposals ever created.
func (m *Manager) GovernanceProposalCount() (uint64, error) {
	count, _, err := m.getUint64(governanceProposalCountKey)
	return count, err
}

// GovernanceSetProposalCount stores the proposal counter.
func (m *Manager) GovernanceSetProposalCount(count uint64) error {
	return m.KVPut(governanceProposalCountKey, count)
}

// GovernanceGetProposal loads proposal id.
func (m *Manager) GovernanceGetProposal(id uint64) (*governance.Proposal, bool, error) {
	var proposal governance.Proposal
	ok, err := m.KVGet(prefixed(governanceProposalPrefix, uint64Bytes(id)), &proposal)
	if err != nil || !ok {
		return nil, ok, err
	}
	if proposal.ForVotes == nil {
		proposal.ForVotes = new(uint256.Int)
	}
	if proposal.AgainstVotes == nil {
		proposal.AgainstVotes = new(uint256.Int)
	}
	return &proposal, true, nil
}

// GovernancePutProposal stores p under its identifier.
func (m *Manager) GovernancePutProposal(p *governance.Proposal) error {
	if p == nil {
		return fmt.Errorf("state: proposal must not be nil")
	}
	return m.KVPut(prefixed(governanceProposalPrefix, uint64Bytes(p.ID)), p.Copy())
}

func receiptKey(id uint64, voter common.Address) []byte {
	return prefixed(governanceReceiptPrefix, uint64Bytes(id), voter.Bytes())
}

// GovernanceReceipt loads the ballot voter cast on proposal id.
func (m *Manager) GovernanceReceipt(id uint64, voter common.Address) (*governance.Receipt, bool, error) {
	var receipt governance.Receipt
	ok, err := m.KVGet(receiptKey(id, voter), &receipt)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &receipt, true, nil
}

// GovernancePutReceipt stores the ballot voter cast on proposal id.
func (m *Manager) GovernancePutReceipt(id uint64, voter common.Address, receipt *governance.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("state: receipt must not be nil")
	}
	return m.KVPut(receiptKey(id, voter), receipt)
}

// GovernanceLatestProposalID returns the latest proposal created by proposer.
func (m *Manager) GovernanceLatestProposalID(proposer common.Address) (uint64, error) {
	id, _, err := m.getUint64(addressKey(governanceLatestPrefix, proposer))
	return id, err
}

// GovernanceSetLatestProposalID indexes the latest proposal of proposer.
func (m *Manager) GovernanceSetLatestProposalID(proposer common.Address, id uint64) error {
	return m.KVPut(addressKey(governanceLatestPrefix, proposer), id)
}

// GovernanceParams loads the governed registry parameters.
func (m *Manager) GovernanceParams() (*governance.Params, bool, error) {
	var params governance.Params
	ok, err := m.KVGet(governanceParamsKey, &params)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &params, true, nil
}

// GovernancePutParams stores the governed registry parameters.
func (m *Manager) GovernancePutParams(params *governance.Params) error {
	if params == nil {
		return fmt.Errorf("state: params must not be nil")
	}
	return m.KVPut(governanceParamsKey, params)
}
