package coordinator

import "strings"

// VerificationResult is the advisory outcome of a structural response check.
type VerificationResult struct {
	Passed  bool   `json:"passed"`
	Details string `json:"details"`
}

// VerifyResponse runs the lightweight structural checks described for the
// Verifier component: a response must be non-empty once trimmed, and if it
// looks like JSON (starts with '{') it must contain at least one ':' to be
// considered shaped like an object. This is advisory only — a failed
// verification never discards a response, it only withholds the scoring
// bonus fanoutBestScore grants to verified output.
func VerifyResponse(text string) VerificationResult {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return VerificationResult{Passed: false, Details: "empty output"}
	}
	if strings.HasPrefix(trimmed, "{") && !strings.Contains(trimmed, ":") {
		return VerificationResult{Passed: false, Details: "invalid json shape"}
	}
	return VerificationResult{Passed: true, Details: "ok"}
}
