// Package inference is the client for the inference collaborator: the
// remote worker endpoint the FanoutBest routing mode calls with a seeded
// prompt and decode parameters, returning generated tokens and text. The
// coordinator treats it as a black-box RPC (spec §6.3); this package only
// owns transport and circuit breaking. Failed calls are not retried.
package inference

// Request mirrors the wire shape of an infer() call.
type Request struct {
	Seed           uint64  `json:"seed"`
	Prompt         string  `json:"prompt"`
	MaxTokens      *uint32 `json:"max_tokens,omitempty"`
	Temperature    *float32 `json:"temperature,omitempty"`
	TopP           *float32 `json:"top_p,omitempty"`
	TopK           *uint32 `json:"top_k,omitempty"`
	RepetitionPenalty *float32 `json:"repetition_penalty,omitempty"`
	MsgID          string  `json:"msg_id"`
}

// Response mirrors the wire shape of an infer() reply.
type Response struct {
	Tokens          []string `json:"tokens"`
	GeneratedText   string   `json:"generated_text"`
	InferenceTimeMs int64    `json:"inference_time_ms"`
	CacheHits       uint32   `json:"cache_hits"`
	CacheMisses     uint32   `json:"cache_misses"`
}
