// ABOUTME: Tests for the broker client against an httptest server
// ABOUTME: Verifies request shape, data extraction and auth failure mapping
package composio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harperreed/cellsync/crm"
	"github.com/harperreed/cellsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Options{BaseURL: server.URL, APIKey: "test-key"}, zap.NewNop())
}

func TestExecuteSendsConnectionAndArguments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/tools/execute/HUBSPOT_LIST_CONTACTS", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var body executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "conn-1", body.ConnectedAccountID)
		assert.Equal(t, float64(100), body.Arguments["limit"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"results":[{"id":"1"}]},"error":null,"successful":true}`))
	})

	data, err := client.Execute(context.Background(), "HUBSPOT_LIST_CONTACTS", "conn-1", map[string]any{"limit": 100})
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"id":"1"}]}`, string(data))
}

func TestExecuteMapsUnauthorizedToReauth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Execute(context.Background(), "ZOHO_GET_ZOHO_RECORDS", "conn-1", nil)
	assert.ErrorIs(t, err, crm.ErrReauthRequired)
}

func TestExecuteMapsExpiredTokenToolErrorToReauth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{},"error":"Access token expired, invalid_grant","successful":false}`))
	})

	_, err := client.Execute(context.Background(), "ATTIO_LIST_RECORDS", "conn-1", nil)
	assert.ErrorIs(t, err, crm.ErrReauthRequired)
}

func TestExecuteOtherFailuresAreUpstream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/tools/execute/BROKEN" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":null,"error":"rate limited","successful":false}`))
	})

	_, err := client.Execute(context.Background(), "BROKEN", "conn-1", nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, crm.ErrReauthRequired)

	_, err = client.Execute(context.Background(), "LIMITED", "conn-1", nil)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFindConnection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/connected_accounts", r.URL.Path)
		assert.Equal(t, "user-1", r.URL.Query().Get("user_ids"))
		assert.Equal(t, "ACTIVE", r.URL.Query().Get("statuses"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("toolkit_slugs") == "hubspot" {
			_, _ = w.Write([]byte(`{"items":[{"id":"ca_old","status":"EXPIRED","toolkit":{"slug":"hubspot"}},{"id":"ca_live","status":"ACTIVE","toolkit":{"slug":"hubspot"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	id, err := client.FindConnection(context.Background(), "user-1", models.CRMHubSpot)
	require.NoError(t, err)
	assert.Equal(t, "ca_live", id)

	_, err = client.FindConnection(context.Background(), "user-1", models.CRMZoho)
	assert.ErrorIs(t, err, crm.ErrNoConnection)
}

func TestIsAuthMessage(t *testing.T) {
	positives := []string{
		"HTTP 401 Unauthorized",
		"The token has expired",
		"request failed with status 401",
		"status code: 403",
		"upstream returned 403 Forbidden",
		"code=401",
	}
	for _, msg := range positives {
		assert.True(t, isAuthMessage(msg), msg)
	}

	negatives := []string{
		"rate limited",
		"Contact 40123 not found",
		"rate limited, retry after 4030ms",
		"Field Phone_401 does not exist",
		"record 403 is locked",
		"status 404 not found",
	}
	for _, msg := range negatives {
		assert.False(t, isAuthMessage(msg), msg)
	}
}
