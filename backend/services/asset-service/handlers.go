package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common"
	"github.com/centralbank/fabric-asset-api/backend/pkg/common/api"
	"github.com/centralbank/fabric-asset-api/backend/pkg/fabricclient"
	"github.com/centralbank/fabric-asset-api/backend/pkg/journal"
	"github.com/centralbank/fabric-asset-api/backend/services/asset-service/models"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

// Chaincode functions of the asset contract.
const (
	fnExists = "myAssetExists"
	fnCreate = "createMyAsset"
	fnRead   = "readMyAsset"
	fnUpdate = "updateMyAsset"
	fnDelete = "deleteMyAsset"
)

const requestIDHeader = "X-Request-ID"

// journalTimeout bounds the outcome write, which outlives the request.
const journalTimeout = 5 * time.Second

// ContractProvider hands out the contract bound to a caller identity.
type ContractProvider interface {
	Contract(label string) (fabricclient.Contract, error)
}

type Service struct {
	contracts ContractProvider
	journal   journal.Recorder
}

func NewService(contracts ContractProvider, recorder journal.Recorder) *Service {
	if recorder == nil {
		recorder = journal.Nop{}
	}
	return &Service{contracts: contracts, journal: recorder}
}

// contract resolves the caller's contract, writing the fault if it fails.
func (s *Service) contract(w http.ResponseWriter, r *http.Request) (fabricclient.Contract, bool) {
	label := common.IdentityFrom(r.Context())
	contract, err := s.contracts.Contract(label)
	if err != nil {
		logger.Warningf("Contract unavailable for [%s]: %s", label, err)
		api.WriteFault(w, err, r.Header.Get(requestIDHeader))
		return nil, false
	}
	return contract, true
}

// exists evaluates myAssetExists, writing a contract error if it fails.
func (s *Service) exists(w http.ResponseWriter, r *http.Request, contract fabricclient.Contract, id string) (bool, bool) {
	result, err := contract.EvaluateTransaction(fnExists, id)
	if err == nil {
		var exists bool
		exists, err = strconv.ParseBool(strings.TrimSpace(string(result)))
		if err == nil {
			return exists, true
		}
		err = errors.Wrapf(err, "unexpected %s result", fnExists)
	}
	writeContractError(w, r, fnExists, err)
	return false, false
}

func (s *Service) GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	contract, ok := s.contract(w, r)
	if !ok {
		return
	}

	exists, ok := s.exists(w, r, contract, id)
	if !ok {
		return
	}
	if !exists {
		writeNotFound(w, r, id)
		return
	}

	result, err := contract.EvaluateTransaction(fnRead, id)
	if err != nil {
		writeContractError(w, r, fnRead, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

func (s *Service) AssetExistsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	contract, ok := s.contract(w, r)
	if !ok {
		return
	}

	exists, ok := s.exists(w, r, contract, id)
	if !ok {
		return
	}
	api.WriteSuccess(w, http.StatusOK, models.ExistsResponse{Exists: exists})
}

func (s *Service) CreateAssetHandler(w http.ResponseWriter, r *http.Request) {
	var req models.Asset
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Body must be {\"id\": string, \"value\": string}", r.Header.Get(requestIDHeader))
		return
	}

	contract, ok := s.contract(w, r)
	if !ok {
		return
	}

	exists, ok := s.exists(w, r, contract, req.ID)
	if !ok {
		return
	}
	if exists {
		api.WriteError(w, http.StatusBadRequest, "asset_exists", "The asset "+req.ID+" already exists", r.Header.Get(requestIDHeader))
		return
	}

	s.submit(w, r, contract, fnCreate, req.ID, req.Value)
}

func (s *Service) UpdateAssetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req models.Asset
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.ID != "" && req.ID != id) {
		api.WriteError(w, http.StatusBadRequest, "invalid_request", "Body must be {\"value\": string} for asset "+id, r.Header.Get(requestIDHeader))
		return
	}

	contract, ok := s.contract(w, r)
	if !ok {
		return
	}

	exists, ok := s.exists(w, r, contract, id)
	if !ok {
		return
	}
	if !exists {
		writeNotFound(w, r, id)
		return
	}

	s.submit(w, r, contract, fnUpdate, id, req.Value)
}

func (s *Service) DeleteAssetHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	contract, ok := s.contract(w, r)
	if !ok {
		return
	}

	exists, ok := s.exists(w, r, contract, id)
	if !ok {
		return
	}
	if !exists {
		writeNotFound(w, r, id)
		return
	}

	s.submit(w, r, contract, fnDelete, id)
}

// submit sends a mutation to the ledger, journaling it around the call.
// args[0] is the asset id.
func (s *Service) submit(w http.ResponseWriter, r *http.Request, contract fabricclient.Contract, fn string, args ...string) {
	ctx := r.Context()
	label := common.IdentityFrom(ctx)

	// 1. Record PENDING
	entryID, err := s.journal.Begin(ctx, label, fn, args[0])
	if err != nil {
		logger.Errorf("Failed to record pending tx: %s", err)
		api.WriteError(w, http.StatusInternalServerError, "journal_error", "Internal Server Error", r.Header.Get(requestIDHeader))
		return
	}

	// 2. Call Chaincode
	_, err = contract.SubmitTransaction(fn, args...)

	// 3. Record outcome, even if the caller has gone away
	var outcome error
	if err != nil {
		outcome = errors.Errorf("Transaction %s failed", fn)
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if jerr := s.journal.Complete(jctx, entryID, outcome); jerr != nil {
		logger.Errorf("Failed to complete journal entry %s: %s", entryID, jerr)
	}

	if err != nil {
		writeContractError(w, r, fn, err)
		return
	}
	logger.Infof("Submitted %s(%s) as [%s]", fn, args[0], label)
	api.WriteSuccess(w, http.StatusNoContent, nil)
}

func (s *Service) JournalHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			api.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", r.Header.Get(requestIDHeader))
			return
		}
		limit = n
	}

	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		logger.Errorf("Failed to list journal: %s", err)
		api.WriteError(w, http.StatusInternalServerError, "journal_error", "Internal Server Error", r.Header.Get(requestIDHeader))
		return
	}
	api.WriteSuccess(w, http.StatusOK, models.JournalResponse{Entries: entries, Count: len(entries)})
}

func writeNotFound(w http.ResponseWriter, r *http.Request, id string) {
	api.WriteError(w, http.StatusNotFound, "asset_not_found", "The asset "+id+" does not exist", r.Header.Get(requestIDHeader))
}

// Chaincode failures are the caller's to fix; the cause is only logged.
func writeContractError(w http.ResponseWriter, r *http.Request, fn string, err error) {
	logger.Warningf("Transaction %s failed for [%s]: %s", fn, common.IdentityFrom(r.Context()), err)
	api.WriteError(w, http.StatusBadRequest, "transaction_failed", "Transaction "+fn+" failed", r.Header.Get(requestIDHeader))
}
