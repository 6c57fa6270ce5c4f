package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}
	return nil
}

func (s *Server) handleDelegate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		Delegatee string `json:"delegatee"`
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
	delegatee, err := parseAddress("delegatee", req.Delegatee)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.Delegate(caller, delegatee); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"delegator": caller.Hex(), "delegatee": delegatee.Hex()})
}

func (s *Server) handleDelegateBySig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delegatee string `json:"delegatee"`
		Nonce     uint64 `json:"nonce"`
		Expiry    uint64 `json:"expiry"`
		Signature string `json:"signature"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	delegatee, err := parseAddress("delegatee", req.Delegatee)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	sig, err := parseBytes("signature", req.Signature)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	signer, err := s.node.DelegateBySig(delegatee, req.Nonce, req.Expiry, sig)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"delegator": signer.Hex(), "delegatee": delegatee.Hex()})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	info, err := s.node.Account(addr)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponseFrom(addr, info))
}

func (s *Server) handlePriorVotes(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	at, err := parseUint("at", r.URL.Query().Get("at"))
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	power, err := s.node.PriorVotes(addr, at)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"address": addr.Hex(), "at": at, "votes": amountString(power)})
}

func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	checkpoints, err := s.node.Checkpoints(addr)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkpointsFrom(checkpoints))
}

func (s *Server) handleTotalSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.node.TotalSupply()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalSupply": amountString(supply)})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount string `json:"amount"`
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
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.Transfer(caller, to, amount); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"from": caller.Hex(), "to": to.Hex(), "amount": amount.Dec()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		To     string `json:"to"`
		Amount string `json:"amount"`
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
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.Mint(caller, to, amount); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"to": to.Hex(), "amount": amount.Dec()})
}
