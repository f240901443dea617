package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// Client is an HTTP client for the inference collaborator, wrapped in a
// circuit breaker so a struggling inference fleet degrades fan-out
// arbitration (fewer live candidates) instead of blocking every route call
// behind a dead dependency. Grounded on the teacher's AI provider
// BaseClient shape (ai/providers/base.go) generalized with sony/gobreaker,
// the circuit breaker the jordigilh-kubernaut examples pair with outbound
// HTTP clients.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	log        logging.ComponentLogger
}

// New builds an inference client against baseURL.
func New(baseURL string, timeout time.Duration, log logging.ComponentLogger) *Client {
	if log == nil {
		log = logging.NoOp{}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference-collaborator",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker:    cb,
		log:        log.WithComponent("inference-client"),
	}
}

// Infer implements coordinator.InferenceClient, adapting the routing
// engine's agent-addressed call shape onto an HTTP POST against that
// agent's advertised address.
func (c *Client) Infer(ctx context.Context, agent coordinator.AgentDescriptor, req coordinator.InferenceRequest) (coordinator.InferenceResponse, error) {
	maxTokens := req.MaxTokens
	temp := req.Temperature
	topP := req.TopP
	wireReq := Request{
		Seed:        req.Seed,
		Prompt:      req.Prompt,
		MaxTokens:   &maxTokens,
		Temperature: &temp,
		TopP:        &topP,
		MsgID:       req.MsgID,
	}

	target := c.baseURL
	if agent.Address != "" {
		target = agent.Address
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doInfer(ctx, target, wireReq)
	})
	if err != nil {
		c.log.Warn("infer call failed", map[string]interface{}{
			"agent_id": agent.AgentID,
			"error":    err,
		})
		return coordinator.InferenceResponse{}, fmt.Errorf("infer call failed for %s: %w", agent.AgentID, err)
	}

	resp := result.(Response)
	return coordinator.InferenceResponse{
		Tokens:          resp.Tokens,
		GeneratedText:   resp.GeneratedText,
		InferenceTimeMs: resp.InferenceTimeMs,
		CacheHits:       resp.CacheHits,
		CacheMisses:     resp.CacheMisses,
	}, nil
}

func (c *Client) doInfer(ctx context.Context, target string, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal infer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/v1/infer", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build infer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("send infer request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read infer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("infer collaborator status %d: %s", resp.StatusCode, string(data))
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, fmt.Errorf("unmarshal infer response: %w", err)
	}
	return out, nil
}
