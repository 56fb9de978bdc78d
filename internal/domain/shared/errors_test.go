package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "network", err: NewNetworkError("position", context.DeadlineExceeded, "GET %s", "http://x"), want: CodeNetwork},
		{name: "parse", err: NewParseError("position", "field %q missing", "latitude"), want: CodeParse},
		{name: "upstream", err: NewUpstreamError("proxy", 500, "Failed to fetch ISS data"), want: CodeUpstream},
		{name: "wrapped again", err: fmt.Errorf("cycle: %w", NewParseError("geocode", "bad json")), want: CodeParse},
		{name: "foreign", err: errors.New("boom"), want: CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestErrorsKeepMessage(t *testing.T) {
	err := NewUpstreamError("proxy", 503, "maintenance")

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "status 503: maintenance")
}
