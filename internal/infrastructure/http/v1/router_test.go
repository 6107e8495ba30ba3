package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txscope/internal/core/apperror"
	"txscope/internal/core/tx"
	"txscope/internal/domain/member"
	"txscope/internal/domain/order"
	v1 "txscope/internal/infrastructure/http/v1"
	"txscope/internal/infrastructure/http/v1/handlers"
	"txscope/internal/infrastructure/http/v1/middleware"
	"txscope/internal/infrastructure/metrics"
	"txscope/internal/infrastructure/storage/memory"
	"txscope/pkg/logger"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestServer(t *testing.T, pinger handlers.Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	journal := memory.NewJournal(100)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	txm := tx.NewResolver(store, tx.WithObserver(tx.Observers(journal, m)))

	router := v1.NewRouter(v1.RouterConfig{
		Logger: logger.NewNop(),
		MemberService: member.NewService(txm,
			memory.NewMemberRepo(store), memory.NewLogRepo(store),
			member.Config{LogPropagation: tx.PropagationRequired}),
		OrderService: order.NewService(txm, memory.NewOrderRepo(store), tx.Definition{}),
		Journal:      handlers.MemoryJournal(journal),
		Pinger:       pinger,
		Backend:      "memory",
		Metrics:      m,
	})
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w, body = s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"memory": "healthy"}, body["checks"])
}

func TestHealth_NotReady(t *testing.T) {
	s := newTestServer(t, pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))

	w, body := s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", body["status"])
}

func TestMembers_JoinSingleScope(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, body["id"])

	w, body = s.do(t, http.MethodGet, "/v1/members/alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, true, body["logged"])
	assert.Equal(t, memory.Stats{Begins: 1, Commits: 1}, s.store.Stats())
}

func TestMembers_SeparateScopesLogFailure(t *testing.T) {
	s := newTestServer(t, nil)
	username := "log-failure-bob"

	w, body := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": username, "mode": "separate"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, middleware.CodeTransactionFailure, body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "log_failure", details["kind"])
	assert.Equal(t, "fault", details["category"])

	w, body = s.do(t, http.MethodGet, "/v1/members/"+username, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["logged"])
}

func TestMembers_RecoverInSharedTransaction(t *testing.T) {
	s := newTestServer(t, nil)
	username := "log-failure-carol"

	w, body := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": username, "mode": "recover"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeUnexpectedRollback, body["code"])

	w, body = s.do(t, http.MethodGet, "/v1/members/"+username, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperror.CodeNotFound, body["code"])
}

func TestMembers_InvalidRequest(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "dave", "mode": "eventually"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])

	w, _ = s.do(t, http.MethodPost, "/v1/members", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, memory.Stats{}, s.store.Stats())
}

func TestMembers_Duplicate(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "erin"})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "erin"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeDuplicate, body["code"])
}

func TestOrders_Complete(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/orders", map[string]any{"username": "frank", "amount": "10.5"})
	require.Equal(t, http.StatusCreated, w.Code)
	orderID, _ := body["id"].(string)
	require.NotEmpty(t, orderID)

	w, body = s.do(t, http.MethodGet, "/v1/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "complete", body["payStatus"])
	assert.Equal(t, "10.50", body["amount"])
}

func TestOrders_NotEnoughMoneyKeepsWaitingOrder(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/orders", map[string]any{"username": order.UsernameInsufficientFunds, "amount": "99"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeNotEnoughMoney, body["code"])
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	orderID, _ := details["order_id"].(string)
	require.NotEmpty(t, orderID)

	w, body = s.do(t, http.MethodGet, "/v1/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "waiting", body["payStatus"])
}

func TestOrders_PaymentFaultRollsBack(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/orders", map[string]any{"username": order.UsernameFault, "amount": "1"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, middleware.CodeTransactionFailure, body["code"])
	assert.Equal(t, memory.Stats{Begins: 1, Rollbacks: 1}, s.store.Stats())
}

func TestOrders_InvalidInput(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/v1/orders", map[string]any{"username": "gina", "amount": "ten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, body["code"])

	w, _ = s.do(t, http.MethodGet, "/v1/orders/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactions_Journal(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "log-failure-hank", "mode": "recover"})
	require.Equal(t, http.StatusConflict, w.Code)

	w, body := s.do(t, http.MethodGet, "/v1/transactions?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	item, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "member.join", item["name"])
	assert.Equal(t, "rollback", item["outcome"])
	assert.Equal(t, true, item["unexpected"])
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodPost, "/v1/members", map[string]any{"username": "ivy"})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `txscope_transactions_total{outcome="commit",propagation="REQUIRED"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/v1/members",status_code="201"} 1`)
}
