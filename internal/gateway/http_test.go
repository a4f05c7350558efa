package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGatewaySendOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "tok-1", msg.To)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"status": "ok", "id": "ticket-1"}},
		})
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL, "secret", 0)
	receipt, err := gw.Send(context.Background(), Message{To: "tok-1", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ticket-1", receipt.MessageID)
}

func TestHTTPGatewaySendDeviceNotRegistered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"status":  "error",
				"message": "not registered",
				"details": map[string]string{"error": "DeviceNotRegistered"},
			}},
		})
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL, "", 0)
	_, err := gw.Send(context.Background(), Message{To: "tok-dead"})
	require.Error(t, err)

	gwErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, CodeDeviceNotRegistered, gwErr.Code)
	assert.True(t, IsPermanent(err))
}

func TestHTTPGatewaySendRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"status":  "error",
				"message": "too many",
				"details": map[string]string{"error": "MessageRateExceeded"},
			}},
		})
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL, "", 0)
	_, err := gw.Send(context.Background(), Message{To: "tok"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err), "rate limiting keeps the token alive")
}

func TestHTTPGatewaySendTopLevelError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{{"code": "PUSH_TOO_MANY_EXPERIENCE_IDS", "message": "bad batch"}},
		})
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL, "", 0)
	_, err := gw.Send(context.Background(), Message{To: "tok"})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestHTTPGatewaySendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	gw := NewHTTPGateway(server.URL, "", 0)
	_, err := gw.Send(context.Background(), Message{To: "tok"})
	assert.Error(t, err)
}
