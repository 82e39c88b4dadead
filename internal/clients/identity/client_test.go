package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"purchases/internal/clients"
	"purchases/internal/infrastructure/breaker"
)

func newTestIdentity(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/artist/public/maria", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	b := breaker.New("identity", breaker.Settings{FailureThreshold: 5, RecoveryTimeout: time.Minute}, zap.NewNop(), nil)
	return NewClient(clients.New(clients.Options{Dependency: "identity", BaseURL: srv.URL, ServiceName: "purchases-service"}, clients.StaticToken("t"), b, zap.NewNop(), nil))
}

func TestGetSellerByUsername_Success(t *testing.T) {
	c := newTestIdentity(t, http.StatusOK, `{"username":"maria","artisticName":"Maria Sol","pfp":"https://img/m.png"}`)

	r := c.GetSellerByUsername(context.Background(), "maria")

	require.True(t, r.IsOK())
	assert.Equal(t, "maria", r.Value.Username)
	assert.Equal(t, "Maria Sol", r.Value.Name)
	assert.Equal(t, "https://img/m.png", r.Value.Pfp)
}

func TestGetSellerByUsername_WrappedInData(t *testing.T) {
	c := newTestIdentity(t, http.StatusOK, `{"data":{"username":"maria","name":"Maria"}}`)

	r := c.GetSellerByUsername(context.Background(), "maria")

	require.True(t, r.IsOK())
	assert.Equal(t, "Maria", r.Value.Name)
}

func TestGetSellerByUsername_NotFound(t *testing.T) {
	c := newTestIdentity(t, http.StatusNotFound, `{"message":"artist not found"}`)

	r := c.GetSellerByUsername(context.Background(), "maria")

	assert.Equal(t, clients.OutcomeNotFound, r.Outcome)
}

func TestGetSellerByUsername_ServerError(t *testing.T) {
	c := newTestIdentity(t, http.StatusServiceUnavailable, ``)

	r := c.GetSellerByUsername(context.Background(), "maria")

	assert.Equal(t, clients.OutcomeUnavailable, r.Outcome)
}

func TestGetSellerByUsername_NoUsername(t *testing.T) {
	c := newTestIdentity(t, http.StatusOK, `{"artisticName":"Anonymous"}`)

	r := c.GetSellerByUsername(context.Background(), "maria")

	assert.Equal(t, clients.OutcomeMalformed, r.Outcome)
}
