package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

var assertErrForTest = errors.New("inference unreachable")

func TestClient_Infer_DispatchesToAgentAddress(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(Response{GeneratedText: "hello", Tokens: []string{"hello"}})
	}))
	defer srv.Close()

	client := New("http://fallback.invalid", time.Second, logging.NoOp{})
	resp, err := client.Infer(context.Background(), coordinator.AgentDescriptor{AgentID: "a", Address: srv.URL}, coordinator.InferenceRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.GeneratedText)
	assert.Equal(t, "/v1/infer", gotPath)
}

func TestClient_Infer_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, logging.NoOp{})
	_, err := client.Infer(context.Background(), coordinator.AgentDescriptor{AgentID: "a"}, coordinator.InferenceRequest{})
	assert.Error(t, err)
}

func TestMock_ImplementsInferenceClient(t *testing.T) {
	m := NewMock()
	m.Responses["a"] = coordinator.InferenceResponse{GeneratedText: "x"}
	m.Errors["b"] = assertErrForTest

	resp, err := m.Infer(context.Background(), coordinator.AgentDescriptor{AgentID: "a"}, coordinator.InferenceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "x", resp.GeneratedText)

	_, err = m.Infer(context.Background(), coordinator.AgentDescriptor{AgentID: "b"}, coordinator.InferenceRequest{})
	assert.ErrorIs(t, err, assertErrForTest)
}
