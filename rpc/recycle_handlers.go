package rpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"recycless/core/types"
	"recycless/crypto"
	"recycless/native/bank"
)

var callMethods = map[string]types.Method{
	"recycle_create":           types.MethodCreate,
	"recycle_setRewardConfig":  types.MethodSetRewardConfig,
	"recycle_setStation":       types.MethodSetStation,
	"recycle_optInRewardAsset": types.MethodOptInRewardAsset,
	"recycle_addBottle":        types.MethodAddBottle,
	"recycle_addBottles":       types.MethodAddBottles,
	"recycle_addBottlesFor":    types.MethodAddBottlesFor,
}

func parseAddressParam(raw json.RawMessage) (common.Address, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return common.Address{}, fmt.Errorf("address must be a string: %w", err)
	}
	return crypto.ParseIdentity(value)
}

func (s *Server) handleRecycleCall(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "signed call parameter required", nil)
		return
	}
	var call types.Call
	if err := json.Unmarshal(req.Params[0], &call); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid call format", err.Error())
		return
	}
	if expected := callMethods[req.Method]; call.Method != expected {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("call method %q does not match %s", call.Method, req.Method), nil)
		return
	}
	receipt, err := s.contract.Execute(r.Context(), &call)
	if err != nil {
		status, _ := contractError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("recycle call failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetBottleCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.contract.Query(types.MethodGetBottleCount, nil)
	if err != nil {
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, types.U64(count))
}

func (s *Server) handleGetUserCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account parameter required", nil)
		return
	}
	account, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	count, err := s.contract.UserCount(account)
	if err != nil {
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, types.U64(count))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.contract.Config()
	if err != nil {
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configResult(cfg))
}

func (s *Server) handleIsStation(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account parameter required", nil)
		return
	}
	account, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	flag, err := s.contract.IsStation(account)
	if err != nil {
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, StationResult{Account: crypto.Format(account), Station: flag})
}

func (s *Server) handleNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account parameter required", nil)
		return
	}
	account, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	nonce, err := s.contract.Nonce(account)
	if err != nil {
		writeContractError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, types.U64(nonce))
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) != 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "assetId and account parameters required", nil)
		return
	}
	var assetID types.U64
	if err := json.Unmarshal(req.Params[0], &assetID); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid assetId", err.Error())
		return
	}
	account, err := parseAddressParam(req.Params[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	if s.bank == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "asset ledger not configured", nil)
		return
	}
	amount, optedIn, err := s.bank.Balance(r.Context(), uint64(assetID), account)
	if err != nil {
		s.logger.Error("bank balance lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "internal error", nil)
		return
	}
	writeResult(w, req.ID, BalanceResult{
		Account: crypto.Format(account),
		AssetID: assetID,
		Amount:  types.U64(amount),
		OptedIn: optedIn,
	})
}

func (s *Server) handleBankTransfers(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if len(req.Params) < 1 || len(req.Params) > 2 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account and optional limit parameters required", nil)
		return
	}
	account, err := parseAddressParam(req.Params[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid account", err.Error())
		return
	}
	limit := types.U64(bank.DefaultTransferLimit)
	if len(req.Params) == 2 {
		if err := json.Unmarshal(req.Params[1], &limit); err != nil || limit == 0 || limit > bank.MaxTransferLimit {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", bank.MaxTransferLimit), nil)
			return
		}
	}
	if s.bank == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "asset ledger not configured", nil)
		return
	}
	records, err := s.bank.Transfers(r.Context(), account, int(limit))
	if err != nil {
		s.logger.Error("bank transfer lookup failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, req.ID, codeInternal, "internal error", nil)
		return
	}
	out := make([]TransferResult, 0, len(records))
	for _, rec := range records {
		out = append(out, transferResult(rec))
	}
	writeResult(w, req.ID, out)
}
