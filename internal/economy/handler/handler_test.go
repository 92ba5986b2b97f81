package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mgcore/internal/economy/adapter"
	"mgcore/internal/economy/auction"
	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/psee/events"
	"mgcore/internal/psee/readmodel"
	"mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/audit/store/memory"
	"mgcore/pkg/testutil"
)

type storeFunc func(ctx context.Context, ev audit.Event) error

func (f storeFunc) SaveAuditEvent(ctx context.Context, ev audit.Event) error { return f(ctx, ev) }

type HandlerSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	model  *readmodel.ReadModel
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.model = readmodel.New(canon.NewRegistry())
	s.router = s.routerWith(s.store)
}

func (s *HandlerSuite) routerWith(store adapter.AuditStore, opts ...adapter.Option) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := canon.NewRegistry()
	a := adapter.New(store, adapter.Engines{
		Eligibility: eligibility.New(registry),
		Auction:     auction.New(registry),
		Governance:  governance.New(registry),
	}, append(opts, adapter.WithLogger(logger))...)
	return NewRouter(New(a, s.model, logger), nil, logger)
}

func (s *HandlerSuite) do(router http.Handler, method, path, role, id string, body any) *httptest.ResponseRecorder {
	req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), method, path, body), role, id)
	return testutil.DoRequest(router, req)
}

func (s *HandlerSuite) project(subject string, amount int64) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(events.MCPayload{UnitID: subject + "-u1", Amount: amount, ExpiresAt: at.AddDate(1, 0, 0)})
	stats := s.model.ProcessEvents([]events.Event{{
		ID: subject + "-e1", Type: events.TypeMCIssued, SubjectID: subject, Payload: payload, OccurredAt: at,
	}})
	s.Require().Equal(1, stats.Applied)
}

func (s *HandlerSuite) TestEligibilityUsesProjectedWallet() {
	s.project("user-1", 40)

	w := s.do(s.router, http.MethodPost, "/economy/eligibility", "employee", "user-1",
		map[string]any{"subject_id": "user-1"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp DecisionResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal(eligibility.RuleEligible, resp.Decision.RuleID)
	s.Len(resp.AuditEventIDs, 1)
	s.Equal(1, s.store.Len())
}

func (s *HandlerSuite) TestDomainDenialIsOK() {
	w := s.do(s.router, http.MethodPost, "/economy/eligibility", "employee", "user-2",
		map[string]any{"subject_id": "user-2"})
	s.Require().Equal(http.StatusOK, w.Code)

	var resp DecisionResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
	s.Equal("DENY", string(resp.Decision.Verdict))
	s.Equal(eligibility.RuleInsufficientBalance, resp.Decision.RuleID)
}

func (s *HandlerSuite) TestErrorMapping() {
	negative := map[string]any{
		"subject_id": "user-1",
		"snapshot":   map[string]any{"subject_id": "user-1", "balance": -5, "as_of": "2026-04-01T08:00:00Z"},
	}
	cases := []struct {
		name   string
		role   string
		id     string
		body   any
		status int
		code   string
	}{
		{"missing caller", "", "", map[string]any{"subject_id": "user-1"}, http.StatusUnauthorized, "unauthorized"},
		{"employee for another subject", "employee", "user-1", map[string]any{"subject_id": "user-2"}, http.StatusForbidden, "forbidden"},
		{"ai caller", "ai", "agent-1", map[string]any{"subject_id": "agent-1"}, http.StatusForbidden, "forbidden"},
		{"missing subject", "admin", "admin-1", map[string]any{}, http.StatusBadRequest, "validation_error"},
		{"unknown field", "admin", "admin-1", map[string]any{"subject_id": "x", "floor": 0}, http.StatusBadRequest, "bad_request"},
		{"canon violation", "admin", "admin-1", negative, http.StatusInternalServerError, "invariant_violation"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.do(s.router, http.MethodPost, "/economy/eligibility", tc.role, tc.id, tc.body)
			testutil.AssertStatusAndError(s.T(), w, tc.status, tc.code)
		})
	}
	s.Zero(s.store.Len(), "nothing is persisted for rejected requests")
}

func (s *HandlerSuite) TestPersistenceFailures() {
	failing := s.routerWith(storeFunc(func(context.Context, audit.Event) error {
		return errors.New("disk full")
	}))
	w := s.do(failing, http.MethodPost, "/economy/eligibility", "employee", "user-1", map[string]any{"subject_id": "user-1"})
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(w.Body.String(), "disk full")

	blocking := s.routerWith(storeFunc(func(ctx context.Context, _ audit.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}), adapter.WithAuditTimeout(10*time.Millisecond))
	w = s.do(blocking, http.MethodPost, "/economy/eligibility", "employee", "user-1", map[string]any{"subject_id": "user-1"})
	s.Equal(http.StatusGatewayTimeout, w.Code)
}

func (s *HandlerSuite) TestGovernance() {
	body := map[string]any{
		"usage_context_id": "uc-1",
		"user_id":          "user-1",
		"domain":           "Payroll",
		"mc_volume":        10,
		"operation_count":  1,
		"window_hours":     24,
	}

	w := s.do(s.router, http.MethodPost, "/economy/governance", "employee", "user-1", body)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(s.router, http.MethodPost, "/economy/governance", "ai", "agent-1", body)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	resp := testutil.UnmarshalResponse[GovernanceResponse](s.T(), w)
	s.Equal(governance.StatusDisallowed, resp.Status)
	s.Equal(governance.ReasonRestrictedDomain, resp.ViolationReason)
	s.Equal("BLOCK", string(resp.Decision.Verdict))
	s.Len(resp.AuditEventIDs, 2)
}

func (s *HandlerSuite) TestProjectionEndpoints() {
	s.project("user-3", 12)

	w := s.do(s.router, http.MethodGet, "/psee/subjects/user-3", "manager", "mgr-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var rec readmodel.Record
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&rec))
	s.Equal(int64(12), rec.Balance)

	w = s.do(s.router, http.MethodGet, "/psee/subjects/user-3/snapshot", "manager", "mgr-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(s.router, http.MethodGet, "/psee/subjects/nobody", "manager", "mgr-1", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestOpenEndpoints() {
	w := s.do(s.router, http.MethodGet, "/healthz", "", "", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(s.router, http.MethodGet, "/metrics", "", "", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerSuite) TestAuditEndpoints() {
	s.project("user-1", 40)
	w := s.do(s.router, http.MethodPost, "/economy/eligibility", "employee", "user-1", map[string]any{"subject_id": "user-1"})
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(s.router, http.MethodGet, "/economy/audit/subjects/user-1", "employee", "user-1", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	trail := testutil.UnmarshalResponse[AuditTrailResponse](s.T(), w)
	s.Equal("user-1", trail.SubjectID)
	s.Require().Len(trail.Events, 1)
	s.Equal(audit.ActionEligibilityEvaluated, trail.Events[0].Action)

	w = s.do(s.router, http.MethodGet, "/economy/audit/recent?limit=5", "admin", "admin-1", nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	recent := testutil.UnmarshalResponse[AuditTrailResponse](s.T(), w)
	s.Len(recent.Events, 1)

	cases := []struct {
		name   string
		path   string
		role   string
		id     string
		status int
		code   string
	}{
		{"employee reading another subject", "/economy/audit/subjects/user-1", "employee", "user-2", http.StatusForbidden, "forbidden"},
		{"ai caller", "/economy/audit/subjects/user-1", "ai", "agent-1", http.StatusForbidden, "forbidden"},
		{"manager listing recent", "/economy/audit/recent", "manager", "mgr-1", http.StatusForbidden, "forbidden"},
		{"non numeric limit", "/economy/audit/recent?limit=ten", "admin", "admin-1", http.StatusBadRequest, "bad_request"},
		{"limit too large", "/economy/audit/recent?limit=5000", "admin", "admin-1", http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.do(s.router, http.MethodGet, tc.path, tc.role, tc.id, nil)
			testutil.AssertStatusAndError(s.T(), w, tc.status, tc.code)
		})
	}
}

func (s *HandlerSuite) TestAuditTrailIsEmptyForUnknownSubject() {
	w := s.do(s.router, http.MethodGet, "/economy/audit/subjects/nobody", "admin", "admin-1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"subject_id":"nobody","events":[]}`, w.Body.String())
}
