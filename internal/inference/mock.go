package inference

import (
	"context"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
)

// Mock is a deterministic, in-process stand-in for the inference
// collaborator. Responses and Errors are keyed by agent id: an id in Errors
// gets that error, and an id in neither map gets an empty response and a
// nil error.
type Mock struct {
	Responses map[string]coordinator.InferenceResponse
	Errors    map[string]error
}

// NewMock builds an empty mock.
func NewMock() *Mock {
	return &Mock{
		Responses: make(map[string]coordinator.InferenceResponse),
		Errors:    make(map[string]error),
	}
}

// Infer implements coordinator.InferenceClient.
func (m *Mock) Infer(_ context.Context, agent coordinator.AgentDescriptor, _ coordinator.InferenceRequest) (coordinator.InferenceResponse, error) {
	if err, ok := m.Errors[agent.AgentID]; ok {
		return coordinator.InferenceResponse{}, err
	}
	if resp, ok := m.Responses[agent.AgentID]; ok {
		return resp, nil
	}
	return coordinator.InferenceResponse{}, nil
}
