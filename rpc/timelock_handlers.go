package rpc

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"govchain/storage/audit"
)

type timelockOp func(caller common.Address, req callRequest) (interface{}, error)

func (s *Server) handleTimelockCall(w http.ResponseWriter, r *http.Request, op timelockOp) {
	var req callRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	caller, err := resolveCaller(r, req.Caller)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	result, err := op(caller, req)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTimelockQueue(w http.ResponseWriter, r *http.Request) {
	s.handleTimelockCall(w, r, func(caller common.Address, req callRequest) (interface{}, error) {
		call, err := req.call()
		if err != nil {
			return nil, err
		}
		hash, err := s.node.TimelockQueue(caller, call, req.Eta)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"txHash": hash.Hex(), "eta": req.Eta}, nil
	})
}

func (s *Server) handleTimelockCancel(w http.ResponseWriter, r *http.Request) {
	s.handleTimelockCall(w, r, func(caller common.Address, req callRequest) (interface{}, error) {
		call, err := req.call()
		if err != nil {
			return nil, err
		}
		hash, err := s.node.TimelockCancel(caller, call, req.Eta)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"txHash": hash.Hex(), "canceled": true}, nil
	})
}

func (s *Server) handleTimelockExecute(w http.ResponseWriter, r *http.Request) {
	s.handleTimelockCall(w, r, func(caller common.Address, req callRequest) (interface{}, error) {
		call, err := req.call()
		if err != nil {
			return nil, err
		}
		out, err := s.node.TimelockExecute(caller, call, req.Eta)
		if err != nil {
			return nil, err
		}
		return map[string]string{"result": hexutil.Encode(out)}, nil
	})
}

func (s *Server) handleTimelockAcceptAdmin(w http.ResponseWriter, r *http.Request) {
	s.handleTimelockCall(w, r, func(caller common.Address, _ callRequest) (interface{}, error) {
		if err := s.node.TimelockAcceptAdmin(caller); err != nil {
			return nil, err
		}
		return map[string]string{"admin": caller.Hex()}, nil
	})
}

func (s *Server) handleTimelockInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.node.Timelock()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timelockResponse{
		Address:      info.Address.Hex(),
		Admin:        info.Admin.Hex(),
		PendingAdmin: info.PendingAdmin.Hex(),
		Delay:        info.Delay,
		GracePeriod:  info.GracePeriod,
	})
}

func (s *Server) handleTimelockQueued(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(chi.URLParam(r, "hash"))
	decoded, err := hexutil.Decode(raw)
	if err != nil || len(decoded) != common.HashLength {
		s.writeOperationError(w, r, fmt.Errorf("hash: expected 32-byte hex: %w", errBadRequest))
		return
	}
	hash := common.BytesToHash(decoded)
	queued, err := s.node.TimelockQueued(hash)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"txHash": hash.Hex(), "queued": queued})
}

func (s *Server) handleFeeTo(w http.ResponseWriter, r *http.Request) {
	feeTo, err := s.node.FeeTo()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feeTo": feeTo.Hex()})
}

func (s *Server) handleSetFeeTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		FeeTo  string `json:"feeTo"`
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
	feeTo, err := parseAddress("feeTo", req.FeeTo)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if err := s.node.SetFeeTo(caller, feeTo); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feeTo": feeTo.Hex()})
}

func (s *Server) handleGetParam(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "*"))
	value, ok, err := s.node.Param(name)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("parameter %q not set", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "value": hexutil.Encode(value)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit log disabled")
		return
	}
	query := r.URL.Query()
	filter := audit.Filter{Type: strings.TrimSpace(query.Get("type"))}
	if raw := query.Get("proposal"); raw != "" {
		id, err := parseUint("proposal", raw)
		if err != nil {
			s.writeOperationError(w, r, err)
			return
		}
		filter.ProposalID = id
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeOperationError(w, r, fmt.Errorf("limit: invalid integer %q: %w", raw, errBadRequest))
			return
		}
		filter.Limit = limit
	}
	records, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	type auditEntry struct {
		ID         uint64            `json:"id"`
		Type       string            `json:"type"`
		ProposalID uint64            `json:"proposalId,omitempty"`
		Attributes map[string]string `json:"attributes"`
		RecordedAt string            `json:"recordedAt"`
	}
	out := make([]auditEntry, 0, len(records))
	for _, record := range records {
		attrs, err := record.Decode()
		if err != nil {
			s.writeOperationError(w, r, err)
			return
		}
		out = append(out, auditEntry{
			ID:         record.ID,
			Type:       record.Type,
			ProposalID: record.ProposalID,
			Attributes: attrs,
			RecordedAt: record.RecordedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
