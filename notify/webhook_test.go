package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWebhook(url string) *Webhook {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewWebhook(url, logger)
}

func TestSend_Succeeds(t *testing.T) {
	var received []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		received = body
	}))
	defer server.Close()

	transient, err := testWebhook(server.URL).Send(context.Background(), "", []byte(`{"event":"revealed"}`))
	require.NoError(t, err)
	assert.False(t, transient)
	assert.JSONEq(t, `{"event":"revealed"}`, string(received))
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	transient, err := testWebhook(server.URL).Send(context.Background(), "", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, transient)
}

func TestSend_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	transient, err := testWebhook(server.URL).Send(context.Background(), "", []byte(`{}`))
	require.Error(t, err)
	assert.False(t, transient)
}

func TestSend_UnreachableIsTransient(t *testing.T) {
	transient, err := testWebhook("http://127.0.0.1:1").Send(context.Background(), "", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, transient)
}

func TestSend_PerCallURLOverridesDefault(t *testing.T) {
	var defaultHits, overrideHits int
	defaultServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHits++
	}))
	defer defaultServer.Close()
	overrideServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits++
	}))
	defer overrideServer.Close()

	hook := testWebhook(defaultServer.URL)

	_, err := hook.Send(context.Background(), overrideServer.URL, []byte(`{}`))
	require.NoError(t, err)
	assert.Zero(t, defaultHits)
	assert.Equal(t, 1, overrideHits)

	_, err = hook.Send(context.Background(), "", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 1, defaultHits)
}

func TestSend_DisabledIsNoop(t *testing.T) {
	transient, err := testWebhook("").Send(context.Background(), "", []byte(`{}`))
	assert.NoError(t, err)
	assert.False(t, transient)
}
