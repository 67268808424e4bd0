package api

import (
	"net/http"
	"strings"

	"github.com/better-wallet/walletd/internal/validation"
	apperrors "github.com/better-wallet/walletd/pkg/errors"
)

// SwitchNetworkRequest is the body of POST /v1/session/network
type SwitchNetworkRequest struct {
	ChainID int64 `json:"chain_id"`
}

// handleSession returns the session snapshot
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, methodNotAllowed())
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Session())
}

// handleSessionOperations routes /v1/session/{operation}
func (s *Server) handleSessionOperations(w http.ResponseWriter, r *http.Request) {
	op := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/session/"), "/")
	if r.Method != http.MethodPost {
		s.writeError(w, methodNotAllowed())
		return
	}

	switch op {
	case "connect":
		s.handleConnect(w, r)
	case "disconnect":
		writeJSON(w, http.StatusOK, s.manager.Disconnect())
	case "network":
		s.handleSwitchNetwork(w, r)
	case "balances/refresh":
		s.handleRefreshBalances(w, r)
	default:
		s.writeError(w, apperrors.ErrNotFound)
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Connect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var req SwitchNetworkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := validation.ValidateChainID(req.ChainID); err != nil {
		s.writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid chain ID", err.Error(), http.StatusBadRequest))
		return
	}

	sess, err := s.manager.SwitchNetwork(r.Context(), req.ChainID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleRefreshBalances(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.RefreshBalances(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleToken returns the token metadata
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, methodNotAllowed())
		return
	}
	md, err := s.manager.TokenMetadata(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}
