package rpc

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
)

func proposalID(r *http.Request) (uint64, error) {
	return parseUint("id", chi.URLParam(r, "id"))
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller      string   `json:"caller"`
		Targets     []string `json:"targets"`
		Values      []string `json:"values"`
		Signatures  []string `json:"signatures"`
		CallDatas   []string `json:"calldatas"`
		Description string   `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	caller, err := resolveCaller(r, req.Caller)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	targets := make([]common.Address, len(req.Targets))
	for i, raw := range req.Targets {
		if targets[i], err = parseAddress("targets", raw); err != nil {
			s.writeOperationError(w, r, err)
			return
		}
	}
	values := make([]*uint256.Int, len(req.Values))
	for i, raw := range req.Values {
		if values[i], err = parseAmount("values", raw); err != nil {
			s.writeOperationError(w, r, err)
			return
		}
	}
	calldatas := make([][]byte, len(req.CallDatas))
	for i, raw := range req.CallDatas {
		if calldatas[i], err = parseBytes("calldatas", raw); err != nil {
			s.writeOperationError(w, r, err)
			return
		}
	}
	signatures := make([]string, len(req.Signatures))
	for i, sig := range req.Signatures {
		signatures[i] = strings.TrimSpace(sig)
	}
	id, err := s.node.Propose(caller, targets, values, signatures, calldatas, req.Description)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	view, err := s.node.Proposal(id)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proposalResponseFrom(view))
}

func (s *Server) handleProposalState(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	state, err := s.node.ProposalState(id)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "state": state.String()})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	voter, err := parseAddress("voter", chi.URLParam(r, "voter"))
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	receipt, err := s.node.Receipt(id, voter)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponseFrom(receipt))
}

func (s *Server) handleGovernanceInfo(w http.ResponseWriter, r *http.Request) {
	params, err := s.node.GovernanceParams()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	count, err := s.node.ProposalCount()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, governanceResponse{
		Guardian:          s.node.Guardian().Hex(),
		ProposalCount:     count,
		QuorumVotes:       amountString(params.QuorumVotes),
		ProposalThreshold: amountString(params.ProposalThreshold),
		MaxOperations:     params.MaxOperations,
		VotingPeriod:      params.VotingPeriod,
		Now:               s.node.Now(),
	})
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Support bool   `json:"support"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	voter, err := resolveCaller(r, req.Caller)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.CastVote(voter, id, req.Support); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	receipt, err := s.node.Receipt(id, voter)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponseFrom(receipt))
}

func (s *Server) handleCastVoteBySig(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	var req struct {
		Support   bool   `json:"support"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	sig, err := parseBytes("signature", req.Signature)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	voter, err := s.node.CastVoteBySig(id, req.Support, sig)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "voter": voter.Hex(), "support": req.Support})
}

func (s *Server) handleQueueProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	eta, err := s.node.Queue(id)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"id": id, "eta": eta})
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.Execute(id); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "executed": true})
}

func (s *Server) handleCancelProposal(w http.ResponseWriter, r *http.Request) {
	id, err := proposalID(r)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	caller, err := resolveCaller(r, req.Caller)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.Cancel(caller, id); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "canceled": true})
}

func (s *Server) handleGovernanceAcceptAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	caller, err := resolveCaller(r, req.Caller)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.AcceptTimelockAdmin(caller); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}
