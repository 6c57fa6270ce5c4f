package rpc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"govchain/core"
	"govchain/crypto"
	"govchain/native/governance"
	"govchain/native/timelock"
	"govchain/native/votes"
)

type accountResponse struct {
	Address  string `json:"address"`
	Bech32   string `json:"bech32"`
	Balance  string `json:"balance"`
	Delegate string `json:"delegate"`
	Nonce    uint64 `json:"nonce"`
	Votes    string `json:"votes"`
}

type checkpointResponse struct {
	AtTime uint64 `json:"atTime"`
	Power  string `json:"power"`
}

type actionPayload struct {
	Target    string `json:"target"`
	Value     string `json:"value"`
	Signature string `json:"signature"`
	CallData  string `json:"calldata"`
}

type proposalResponse struct {
	ID           uint64          `json:"id"`
	Proposer     string          `json:"proposer"`
	State        string          `json:"state"`
	Eta          uint64          `json:"eta"`
	StartTime    uint64          `json:"startTime"`
	EndTime      uint64          `json:"endTime"`
	ForVotes     string          `json:"forVotes"`
	AgainstVotes string          `json:"againstVotes"`
	Canceled     bool            `json:"canceled"`
	Executed     bool            `json:"executed"`
	Description  string          `json:"description"`
	Actions      []actionPayload `json:"actions"`
}

type receiptResponse struct {
	HasVoted bool   `json:"hasVoted"`
	Support  bool   `json:"support"`
	Votes    string `json:"votes"`
}

type governanceResponse struct {
	Guardian          string `json:"guardian"`
	ProposalCount     uint64 `json:"proposalCount"`
	QuorumVotes       string `json:"quorumVotes"`
	ProposalThreshold string `json:"proposalThreshold"`
	MaxOperations     uint64 `json:"maxOperations"`
	VotingPeriod      uint64 `json:"votingPeriod"`
	Now               uint64 `json:"now"`
}

type timelockResponse struct {
	Address      string `json:"address"`
	Admin        string `json:"admin"`
	PendingAdmin string `json:"pendingAdmin"`
	Delay        uint64 `json:"delay"`
	GracePeriod  uint64 `json:"gracePeriod"`
}

type callRequest struct {
	Caller    string `json:"caller"`
	Target    string `json:"target"`
	Value     string `json:"value"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
	Eta       uint64 `json:"eta"`
}

func (c callRequest) call() (timelock.Call, error) {
	target, err := parseAddress("target", c.Target)
	if err != nil {
		return timelock.Call{}, err
	}
	value, err := parseAmount("value", c.Value)
	if err != nil {
		return timelock.Call{}, err
	}
	data, err := parseBytes("data", c.Data)
	if err != nil {
		return timelock.Call{}, err
	}
	return timelock.Call{Target: target, Value: value, Signature: strings.TrimSpace(c.Signature), Data: data}, nil
}

func accountResponseFrom(addr common.Address, info *core.AccountInfo) accountResponse {
	return accountResponse{
		Address:  addr.Hex(),
		Bech32:   crypto.FromCommon(addr).String(),
		Balance:  amountString(info.Balance),
		Delegate: info.Delegate.Hex(),
		Nonce:    info.Nonce,
		Votes:    amountString(info.Votes),
	}
}

func checkpointsFrom(checkpoints []*votes.Checkpoint) []checkpointResponse {
	out := make([]checkpointResponse, 0, len(checkpoints))
	for _, cp := range checkpoints {
		if cp == nil {
			continue
		}
		out = append(out, checkpointResponse{AtTime: cp.AtTime, Power: amountString(cp.Power)})
	}
	return out
}

func proposalResponseFrom(view *core.ProposalView) proposalResponse {
	p := view.Proposal
	actions := make([]actionPayload, len(p.Actions))
	for i, action := range p.Actions {
		actions[i] = actionPayload{
			Target:    action.Target.Hex(),
			Value:     amountString(action.Value),
			Signature: action.Signature,
			CallData:  hexutil.Encode(action.CallData),
		}
	}
	return proposalResponse{
		ID:           p.ID,
		Proposer:     p.Proposer.Hex(),
		State:        view.State.String(),
		Eta:          p.Eta,
		StartTime:    p.StartTime,
		EndTime:      p.EndTime,
		ForVotes:     amountString(p.ForVotes),
		AgainstVotes: amountString(p.AgainstVotes),
		Canceled:     p.Canceled,
		Executed:     p.Executed,
		Description:  p.Description,
		Actions:      actions,
	}
}

func receiptResponseFrom(receipt *governance.Receipt) receiptResponse {
	if receipt == nil {
		return receiptResponse{Votes: "0"}
	}
	return receiptResponse{HasVoted: receipt.HasVoted, Support: receipt.Support, Votes: amountString(receipt.Votes)}
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseAddress(field, raw string) (common.Address, error) {
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %v: %w", field, err, errBadRequest)
	}
	return addr, nil
}

// parseAmount reads a decimal amount. An empty string is zero.
func parseAmount(field, raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", field, raw, errBadRequest)
	}
	return amount, nil
}

// parseBytes reads 0x-prefixed hex. An empty string is no data.
func parseBytes(field, raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "0x" {
		return nil, nil
	}
	data, err := hexutil.Decode(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", field, err, errBadRequest)
	}
	return data, nil
}

func parseUint(field, raw string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", field, raw, errBadRequest)
	}
	return v, nil
}
