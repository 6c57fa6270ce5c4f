package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"govchain/native/governance"
	"govchain/native/timelock"
	"govchain/native/votes"
)

// Delegate assigns the voting power of delegator to delegatee.
func (n *Node) Delegate(delegator, delegatee common.Address) error {
	return n.apply("delegate", func() error {
		return n.votes.Delegate(delegator, delegatee)
	})
}

// DelegateBySig applies a signed delegation and returns the recovered signer.
func (n *Node) DelegateBySig(delegatee common.Address, nonce, expiry uint64, sig []byte) (common.Address, error) {
	var signer common.Address
	err := n.apply("delegate_by_sig", func() error {
		var err error
		signer, err = n.votes.DelegateBySig(delegatee, nonce, expiry, sig)
		return err
	})
	return signer, err
}

// Transfer moves governance tokens and the voting power attached to them.
func (n *Node) Transfer(from, to common.Address, amount *uint256.Int) error {
	return n.apply("transfer", func() error {
		return n.bank.Transfer(from, to, amount)
	})
}

// Mint issues new tokens. Only the minter may call it.
func (n *Node) Mint(caller, to common.Address, amount *uint256.Int) error {
	return n.apply("mint", func() error {
		return n.bank.Mint(caller, to, amount)
	})
}

// Propose admits a new proposal and returns its identifier.
func (n *Node) Propose(proposer common.Address, targets []common.Address, values []*uint256.Int, signatures []string, calldatas [][]byte, description string) (uint64, error) {
	var id uint64
	err := n.apply("propose", func() error {
		var err error
		id, err = n.governance.Propose(proposer, targets, values, signatures, calldatas, description)
		return err
	})
	return id, err
}

// CastVote records a ballot from voter.
func (n *Node) CastVote(voter common.Address, id uint64, support bool) error {
	return n.apply("cast_vote", func() error {
		return n.governance.CastVote(voter, id, support)
	})
}

// CastVoteBySig records a signed ballot and returns the recovered voter.
func (n *Node) CastVoteBySig(id uint64, support bool, sig []byte) (common.Address, error) {
	var voter common.Address
	err := n.apply("cast_vote_by_sig", func() error {
		var err error
		voter, err = n.governance.CastVoteBySig(id, support, sig)
		return err
	})
	return voter, err
}

// Cancel withdraws a proposal and any timelock entries it queued.
func (n *Node) Cancel(caller common.Address, id uint64) error {
	return n.apply("cancel", func() error {
		return n.governance.Cancel(caller, id)
	})
}

// Queue schedules a succeeded proposal and returns its eta.
func (n *Node) Queue(id uint64) (uint64, error) {
	var eta uint64
	err := n.apply("queue", func() error {
		var err error
		eta, err = n.governance.Queue(id)
		return err
	})
	return eta, err
}

// Execute runs every action of a queued proposal. Either all actions take
// effect or none do.
func (n *Node) Execute(id uint64) error {
	return n.apply("execute", func() error {
		return n.governance.Execute(id)
	})
}

// AcceptTimelockAdmin lets the guardian make the registry the timelock admin.
func (n *Node) AcceptTimelockAdmin(caller common.Address) error {
	return n.apply("accept_admin", func() error {
		return n.governance.AcceptAdmin(caller)
	})
}

// TimelockQueue schedules call directly on the timelock.
func (n *Node) TimelockQueue(caller common.Address, call timelock.Call, eta uint64) (common.Hash, error) {
	var hash common.Hash
	err := n.apply("timelock_queue", func() error {
		var err error
		hash, err = n.timelock.QueueTransaction(caller, call, eta)
		return err
	})
	return hash, err
}

// TimelockCancel removes call from the timelock queue.
func (n *Node) TimelockCancel(caller common.Address, call timelock.Call, eta uint64) (common.Hash, error) {
	var hash common.Hash
	err := n.apply("timelock_cancel", func() error {
		var err error
		hash, err = n.timelock.CancelTransaction(caller, call, eta)
		return err
	})
	return hash, err
}

// TimelockExecute runs a queued call directly on the timelock.
func (n *Node) TimelockExecute(caller common.Address, call timelock.Call, eta uint64) ([]byte, error) {
	var out []byte
	err := n.apply("timelock_execute", func() error {
		var err error
		out, err = n.timelock.ExecuteTransaction(caller, call, eta)
		return err
	})
	return out, err
}

// TimelockAcceptAdmin completes an admin handover on the timelock.
func (n *Node) TimelockAcceptAdmin(caller common.Address) error {
	return n.apply("timelock_accept_admin", func() error {
		return n.timelock.AcceptAdmin(caller)
	})
}

// SetFeeTo updates the fee recipient. Only the fee-to setter may call it.
func (n *Node) SetFeeTo(caller, feeTo common.Address) error {
	return n.apply("set_fee_to", func() error {
		return n.params.SetFeeTo(caller, feeTo)
	})
}

// PriorVotes returns the voting power of account at atTime.
func (n *Node) PriorVotes(account common.Address, atTime uint64) (*uint256.Int, error) {
	var power *uint256.Int
	err := n.view(func() error {
		var err error
		power, err = n.votes.PriorPower(account, atTime)
		return err
	})
	return power, err
}

// CurrentVotes returns the latest voting power of account.
func (n *Node) CurrentVotes(account common.Address) (*uint256.Int, error) {
	var power *uint256.Int
	err := n.view(func() error {
		var err error
		power, err = n.votes.CurrentPower(account)
		return err
	})
	return power, err
}

// Checkpoints returns the voting power history of account.
func (n *Node) Checkpoints(account common.Address) ([]*votes.Checkpoint, error) {
	var out []*votes.Checkpoint
	err := n.view(func() error {
		var err error
		out, err = n.votes.Checkpoints(account)
		return err
	})
	return out, err
}

// AccountInfo summarises the governance position of an account.
type AccountInfo struct {
	Balance  *uint256.Int
	Delegate common.Address
	Nonce    uint64
	Votes    *uint256.Int
}

// Account returns the balance, delegate, nonce and current votes of account.
func (n *Node) Account(account common.Address) (*AccountInfo, error) {
	info := &AccountInfo{}
	err := n.view(func() error {
		var err error
		if info.Balance, err = n.bank.BalanceOf(account); err != nil {
			return err
		}
		if info.Delegate, err = n.votes.Delegates(account); err != nil {
			return err
		}
		if info.Nonce, err = n.votes.Nonce(account); err != nil {
			return err
		}
		info.Votes, err = n.votes.CurrentPower(account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// TotalSupply returns the number of governance tokens in circulation.
func (n *Node) TotalSupply() (*uint256.Int, error) {
	var supply *uint256.Int
	err := n.view(func() error {
		var err error
		supply, err = n.bank.TotalSupply()
		return err
	})
	return supply, err
}

// ProposalView is a proposal together with its derived state.
type ProposalView struct {
	Proposal *governance.Proposal
	State    governance.ProposalState
}

// Proposal returns proposal id and its current state.
func (n *Node) Proposal(id uint64) (*ProposalView, error) {
	view := &ProposalView{}
	err := n.view(func() error {
		var err error
		if view.Proposal, err = n.governance.Proposal(id); err != nil {
			return err
		}
		view.State, err = n.governance.State(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ProposalState returns the derived state of proposal id.
func (n *Node) ProposalState(id uint64) (governance.ProposalState, error) {
	var st governance.ProposalState
	err := n.view(func() error {
		var err error
		st, err = n.governance.State(id)
		return err
	})
	return st, err
}

// ProposalCount returns the number of proposals ever created.
func (n *Node) ProposalCount() (uint64, error) {
	var count uint64
	err := n.view(func() error {
		var err error
		count, err = n.governance.ProposalCount()
		return err
	})
	return count, err
}

// LatestProposalID returns the most recent proposal of proposer.
func (n *Node) LatestProposalID(proposer common.Address) (uint64, error) {
	var id uint64
	err := n.view(func() error {
		var err error
		id, err = n.governance.LatestProposalID(proposer)
		return err
	})
	return id, err
}

// Receipt returns the ballot voter cast on proposal id.
func (n *Node) Receipt(id uint64, voter common.Address) (*governance.Receipt, error) {
	var receipt *governance.Receipt
	err := n.view(func() error {
		var err error
		receipt, err = n.governance.Receipt(id, voter)
		return err
	})
	return receipt, err
}

// GovernanceParams returns the active registry parameters.
func (n *Node) GovernanceParams() (governance.Params, error) {
	var params governance.Params
	err := n.view(func() error {
		var err error
		params, err = n.governance.Params()
		return err
	})
	return params, err
}

// Guardian returns the registry guardian.
func (n *Node) Guardian() common.Address { return n.governance.Guardian() }

// TimelockInfo describes the timelock configuration.
type TimelockInfo struct {
	Address      common.Address
	Admin        common.Address
	PendingAdmin common.Address
	Delay        uint64
	GracePeriod  uint64
}

// Timelock returns the timelock configuration.
func (n *Node) Timelock() (*TimelockInfo, error) {
	info := &TimelockInfo{Address: n.timelock.Address(), GracePeriod: n.timelock.GracePeriod()}
	err := n.view(func() error {
		var err error
		if info.Admin, err = n.timelock.Admin(); err != nil {
			return err
		}
		if info.PendingAdmin, err = n.timelock.PendingAdmin(); err != nil {
			return err
		}
		info.Delay, err = n.timelock.Delay()
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// TimelockQueued reports whether hash is queued on the timelock.
func (n *Node) TimelockQueued(hash common.Hash) (bool, error) {
	var queued bool
	err := n.view(func() error {
		var err error
		queued, err = n.timelock.Queued(hash)
		return err
	})
	return queued, err
}

// FeeTo returns the protocol fee recipient.
func (n *Node) FeeTo() (common.Address, error) {
	var feeTo common.Address
	err := n.view(func() error {
		var err error
		feeTo, err = n.params.FeeTo()
		return err
	})
	return feeTo, err
}

// Param returns the raw value of a governed parameter.
func (n *Node) Param(name string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := n.view(func() error {
		var err error
		value, ok, err = n.params.Param(name)
		return err
	})
	return value, ok, err
}
