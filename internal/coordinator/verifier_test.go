package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyResponse(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		passed bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n\t", false},
		{"plain text", "hello world", true},
		{"json-shaped", `{"status": "ok"}`, true},
		{"brace without colon", "{not json}", false},
		{"brace with colon mid-string", "{ everything: fine }", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := VerifyResponse(tc.text)
			assert.Equal(t, tc.passed, result.Passed)
			assert.NotEmpty(t, result.Details)
		})
	}
}
