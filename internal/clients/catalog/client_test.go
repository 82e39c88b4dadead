package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/infrastructure/breaker"
)

func newTestCatalog(baseURL string, threshold int, transport http.RoundTripper) *Client {
	b := breaker.New("catalog", breaker.Settings{FailureThreshold: threshold, RecoveryTimeout: time.Minute, Interval: time.Minute}, zap.NewNop(), nil)
	base := clients.New(clients.Options{
		Dependency:  "catalog",
		BaseURL:     baseURL,
		ServiceName: "purchases-service",
		Timeout:     time.Second,
		Transport:   transport,
	}, clients.StaticToken("tok"), b, zap.NewNop(), nil)
	return NewClient(base)
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type countingTransport struct {
	calls int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return http.DefaultTransport.RoundTrip(r)
}

// Tests

func TestGetProductByID_Success(t *testing.T) {
	srv := serve(t, http.StatusOK, `{
		"success": true,
		"data": {
			"name": "Vinyl",
			"price": 15.99,
			"stock": 7,
			"description": "Limited edition",
			"images": ["https://img/vinyl.png"],
			"artist": {"username": "lucia", "artisticName": "Lucia Art", "profilePicture": "https://img/lucia.png"}
		}
	}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductByID(context.Background(), "p-1")

	require.True(t, r.IsOK(), r.String())
	p := r.Value
	assert.Equal(t, "p-1", p.PublicID)
	assert.Equal(t, "Vinyl", p.Name)
	assert.Equal(t, "Limited edition", p.Description)
	assert.Equal(t, "https://img/vinyl.png", p.ImageSrc)
	assert.Equal(t, "15.99", p.Price.StringFixed(2))
	assert.True(t, p.HasPrice)
	require.NotNil(t, p.Stock)
	assert.Equal(t, 7, *p.Stock)
	assert.Equal(t, "lucia", p.Seller.Username)
	assert.Equal(t, "Lucia Art", p.Seller.Name)
	assert.Equal(t, "https://img/lucia.png", p.Seller.Pfp)
}

func TestGetProductByID_MissingPrice(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": true, "data": {"name": "Vinyl"}}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductByID(context.Background(), "p-1")

	require.True(t, r.IsOK())
	assert.False(t, r.Value.HasPrice)
}

func TestGetProductByID_NotFound(t *testing.T) {
	srv := serve(t, http.StatusNotFound, `{"success": false, "message": "product not found"}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductByID(context.Background(), "missing")

	assert.Equal(t, clients.OutcomeNotFound, r.Outcome)
	assert.Equal(t, "product not found", r.Detail)
}

func TestGetProductByID_UnsuccessfulEnvelope(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": false, "message": "product hidden"}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductByID(context.Background(), "p-1")

	assert.Equal(t, clients.OutcomeMalformed, r.Outcome)
	assert.Equal(t, "product hidden", r.Detail)
}

func TestGetProductStock_Numeric(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": true, "data": {"stock": 12}}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductStock(context.Background(), "p-1")

	require.True(t, r.IsOK())
	assert.Equal(t, 12, r.Value)
}

func TestGetProductStock_MissingStockField(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": true, "data": {"name": "Vinyl"}}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductStock(context.Background(), "p-1")

	assert.Equal(t, clients.OutcomeMalformed, r.Outcome)
	assert.Contains(t, r.Detail, "no stock field")
}

func TestGetProductStock_ServerErrorIsUnavailable(t *testing.T) {
	srv := serve(t, http.StatusBadGateway, `{"error": "upstream"}`)

	r := newTestCatalog(srv.URL, 5, nil).GetProductStock(context.Background(), "p-1")

	assert.Equal(t, clients.OutcomeUnavailable, r.Outcome)
}

func TestGetProductStock_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	r := newTestCatalog(deadURL, 5, nil).GetProductStock(context.Background(), "p-1")

	assert.Equal(t, clients.OutcomeUnavailable, r.Outcome)
	assert.Error(t, r.Err)
}

func TestAdjustStock_SendsSignedDelta(t *testing.T) {
	var gotPath, gotDelta, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotDelta = r.URL.Query().Get("delta")
		_, _ = w.Write([]byte(`{"success": true, "data": {"stock": 3}}`))
	}))
	defer srv.Close()

	r := newTestCatalog(srv.URL, 5, nil).AdjustStock(context.Background(), "p-9", -4)

	require.True(t, r.IsOK())
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/products/p-9/stock", gotPath)
	assert.Equal(t, "-4", gotDelta)
	assert.JSONEq(t, `{"success": true, "data": {"stock": 3}}`, string(r.Value))
}

func TestAdjustStock_ServerErrorIsFailure(t *testing.T) {
	srv := serve(t, http.StatusInternalServerError, `{"error": "db down"}`)

	r := newTestCatalog(srv.URL, 5, nil).AdjustStock(context.Background(), "p-1", -1)

	assert.Equal(t, clients.OutcomeFailed, r.Outcome)
	assert.Equal(t, "db down", r.Detail)
}

func TestAdjustStock_BusinessRejection(t *testing.T) {
	srv := serve(t, http.StatusConflict, `{"error": "stock cannot go negative"}`)

	r := newTestCatalog(srv.URL, 5, nil).AdjustStock(context.Background(), "p-1", -100)

	assert.Equal(t, clients.OutcomeRejected, r.Outcome)
	assert.Equal(t, "stock cannot go negative", r.Detail)
}

func TestAdjustStock_RefusedInEnvelope(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"success": false, "message": "insufficient stock"}`)

	r := newTestCatalog(srv.URL, 5, nil).AdjustStock(context.Background(), "p-1", -1)

	assert.Equal(t, clients.OutcomeRejected, r.Outcome)
	assert.Equal(t, "insufficient stock", r.Detail)
}

func TestCatalog_BreakerOpensAndFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	transport := &countingTransport{}
	c := newTestCatalog(deadURL, 3, transport)

	for i := 0; i < 3; i++ {
		r := c.GetProductStock(context.Background(), "p-1")
		assert.Equal(t, clients.OutcomeUnavailable, r.Outcome)
	}
	require.Equal(t, int32(3), atomic.LoadInt32(&transport.calls))

	for i := 0; i < 5; i++ {
		r := c.GetProductStock(context.Background(), "p-1")
		assert.Equal(t, clients.OutcomeUnavailable, r.Outcome)
		assert.ErrorIs(t, r.Err, breaker.ErrOpen)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&transport.calls))
}

func TestCatalog_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := serve(t, http.StatusNotFound, `{}`)
	c := newTestCatalog(srv.URL, 2, nil)

	for i := 0; i < 5; i++ {
		r := c.GetProductByID(context.Background(), "missing")
		assert.Equal(t, clients.OutcomeNotFound, r.Outcome)
	}
}
