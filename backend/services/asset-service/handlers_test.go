package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common"
	"github.com/centralbank/fabric-asset-api/backend/pkg/common/apperr"
	"github.com/centralbank/fabric-asset-api/backend/pkg/fabricclient"
	"github.com/centralbank/fabric-asset-api/backend/pkg/journal"
	"github.com/centralbank/fabric-asset-api/backend/services/asset-service/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger is an in-memory asset contract.
type ledger struct {
	mu        sync.Mutex
	assets    map[string]string
	submitted []string
	failWith  error
	existsRaw string
}

func newLedger() *ledger {
	return &ledger{assets: map[string]string{}}
}

func (l *ledger) EvaluateTransaction(name string, args ...string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch name {
	case fnExists:
		if l.existsRaw != "" {
			return []byte(l.existsRaw), nil
		}
		_, ok := l.assets[args[0]]
		if ok {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case fnRead:
		return []byte(`{"value":"` + l.assets[args[0]] + `"}`), nil
	}
	return nil, errors.Errorf("unknown function %s", name)
}

func (l *ledger) SubmitTransaction(name string, args ...string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.submitted = append(l.submitted, name)
	if l.failWith != nil {
		return nil, l.failWith
	}
	switch name {
	case fnCreate, fnUpdate:
		l.assets[args[0]] = args[1]
	case fnDelete:
		delete(l.assets, args[0])
	}
	return nil, nil
}

type contracts struct {
	contract fabricclient.Contract
	err      error
	labels   []string
}

func (c *contracts) Contract(label string) (fabricclient.Contract, error) {
	c.labels = append(c.labels, label)
	if c.err != nil {
		return nil, c.err
	}
	return c.contract, nil
}

// cancelingContract commits to the ledger and then drops the caller, as a
// client disconnecting mid-request would.
type cancelingContract struct {
	*ledger
	cancel context.CancelFunc
}

func (c cancelingContract) SubmitTransaction(name string, args ...string) ([]byte, error) {
	result, err := c.ledger.SubmitTransaction(name, args...)
	c.cancel()
	return result, err
}

type memJournal struct {
	entries  []journal.Entry
	beginErr error
}

func (j *memJournal) Begin(_ context.Context, identity, operation, assetID string) (string, error) {
	if j.beginErr != nil {
		return "", j.beginErr
	}
	j.entries = append(j.entries, journal.Entry{
		ID:        operation + ":" + assetID,
		Identity:  identity,
		Operation: operation,
		AssetID:   assetID,
		Status:    journal.Pending,
	})
	return operation + ":" + assetID, nil
}

func (j *memJournal) Complete(ctx context.Context, id string, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range j.entries {
		if j.entries[i].ID == id {
			j.entries[i].Status = journal.Confirmed
			if cause != nil {
				j.entries[i].Status = journal.Failed
				j.entries[i].Error = cause.Error()
			}
			return nil
		}
	}
	return errors.Errorf("journal entry %s not found", id)
}

func (j *memJournal) List(_ context.Context, limit int) ([]journal.Entry, error) {
	limit = journal.ClampLimit(limit)
	if limit > len(j.entries) {
		limit = len(j.entries)
	}
	return j.entries[:limit], nil
}

type fixture struct {
	ledger    *ledger
	contracts *contracts
	journal   *memJournal
	handler   http.Handler
}

func newFixture() *fixture {
	l := newLedger()
	c := &contracts{contract: l}
	j := &memJournal{}
	return &fixture{
		ledger:    l,
		contracts: c,
		journal:   j,
		handler:   NewRouter(NewService(c, j), RouterOptions{}),
	}
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(common.IdentityHeader, "user1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAssetLifecycle(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/assets", `{"id":"a1","value":"red"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/assets/a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"value":"red"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = f.do(http.MethodPut, "/assets/a1", `{"value":"blue"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "blue", f.ledger.assets["a1"])

	rec = f.do(http.MethodGet, "/assets/a1/exists", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var exists models.ExistsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exists))
	assert.True(t, exists.Exists)

	rec = f.do(http.MethodDelete, "/assets/a1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/assets/a1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "asset_not_found")

	assert.Equal(t, []string{fnCreate, fnUpdate, fnDelete}, f.ledger.submitted)
	assert.Equal(t, []string{"user1", "user1", "user1", "user1", "user1", "user1"}, f.contracts.labels)

	require.Len(t, f.journal.entries, 3)
	for _, e := range f.journal.entries {
		assert.Equal(t, journal.Confirmed, e.Status)
		assert.Equal(t, "user1", e.Identity)
		assert.Equal(t, "a1", e.AssetID)
	}
}

func TestCreateAssetRejects(t *testing.T) {
	f := newFixture()
	f.ledger.assets["a1"] = "red"

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed body", body: `{"id":`, code: "invalid_request"},
		{name: "missing id", body: `{"value":"red"}`, code: "invalid_request"},
		{name: "existing asset", body: `{"id":"a1","value":"blue"}`, code: "asset_exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/assets", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
	assert.Empty(t, f.ledger.submitted)
	assert.Equal(t, "red", f.ledger.assets["a1"])
}

func TestUpdateAndDeleteMissingAsset(t *testing.T) {
	f := newFixture()

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPut, "/assets/ghost", `{"value":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/assets/ghost", "").Code)
	assert.Empty(t, f.ledger.submitted)
	assert.Empty(t, f.journal.entries)
}

func TestUpdateAssetIDMismatch(t *testing.T) {
	f := newFixture()
	f.ledger.assets["a1"] = "red"

	rec := f.do(http.MethodPut, "/assets/a1", `{"id":"a2","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "red", f.ledger.assets["a1"])
}

func TestSubmitFailureIsJournaled(t *testing.T) {
	f := newFixture()
	f.ledger.failWith = errors.New("endorsement policy failure")

	rec := f.do(http.MethodPost, "/assets", `{"id":"a1","value":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "transaction_failed")
	assert.NotContains(t, rec.Body.String(), "endorsement")

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, journal.Failed, f.journal.entries[0].Status)
	assert.Equal(t, "Transaction createMyAsset failed", f.journal.entries[0].Error)
}

func TestOutcomeIsJournaledAfterClientDisconnect(t *testing.T) {
	tests := []struct {
		name   string
		fail   error
		status journal.Status
	}{
		{name: "committed", status: journal.Confirmed},
		{name: "rejected", fail: errors.New("endorsement policy failure"), status: journal.Failed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.ledger.failWith = tt.fail
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			f.contracts.contract = cancelingContract{ledger: f.ledger, cancel: cancel}

			req := httptest.NewRequest(http.MethodPost, "/assets", strings.NewReader(`{"id":"a1","value":"red"}`)).WithContext(ctx)
			req.Header.Set(common.IdentityHeader, "user1")
			f.handler.ServeHTTP(httptest.NewRecorder(), req)

			require.Error(t, ctx.Err())
			require.Len(t, f.journal.entries, 1)
			assert.Equal(t, tt.status, f.journal.entries[0].Status)
		})
	}
}

func TestJournalUnavailableBlocksSubmit(t *testing.T) {
	f := newFixture()
	f.journal.beginErr = errors.New("db down")

	rec := f.do(http.MethodPost, "/assets", `{"id":"a1","value":"red"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.ledger.submitted)
}

func TestUnexpectedExistsResult(t *testing.T) {
	f := newFixture()
	f.ledger.existsRaw = "maybe"

	rec := f.do(http.MethodGet, "/assets/a1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContractFaultsMapToStatus(t *testing.T) {
	badProfile := apperr.Errorf(apperr.Configuration, "parse wallet profile", "", "bad json")

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "unknown identity",
			err:    apperr.Errorf(apperr.Identity, "verify identity", "user1", "not found"),
			status: http.StatusUnauthorized,
			code:   "identity_error",
		},
		{
			name:   "bad wallet profile",
			err:    apperr.Errorf(apperr.Configuration, "parse wallet profile", "", "bad json"),
			status: http.StatusInternalServerError,
			code:   "configuration_error",
		},
		{
			name:   "broken wallet profile",
			err:    apperr.E(apperr.Identity, "open identity store", "user1", badProfile),
			status: http.StatusInternalServerError,
			code:   "configuration_error",
		},
		{
			name:   "network down",
			err:    apperr.Errorf(apperr.Connection, "connect gateway", "user1", "dial tcp: refused"),
			status: http.StatusServiceUnavailable,
			code:   "connection_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.contracts.err = tt.err

			rec := f.do(http.MethodGet, "/assets/a1", "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
			assert.NotContains(t, rec.Body.String(), "refused")
		})
	}
}

func TestMissingIdentityHeader(t *testing.T) {
	f := newFixture()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/a1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.contracts.labels)
}

func TestJournalHandler(t *testing.T) {
	f := newFixture()
	f.do(http.MethodPost, "/assets", `{"id":"a1","value":"red"}`)
	f.do(http.MethodPost, "/assets", `{"id":"a2","value":"red"}`)

	rec := f.do(http.MethodGet, "/journal?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.JournalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "a1", resp.Entries[0].AssetID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/journal?limit=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/journal?limit=-3", "").Code)
}
