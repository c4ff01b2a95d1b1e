package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmbot/letterboxd-bot/internal/domain"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare handle", in: "alice", want: "alice"},
		{name: "uppercase folded", in: "Alice_99", want: "alice_99"},
		{name: "profile url", in: "https://letterboxd.com/alice/", want: "alice"},
		{name: "profile url no scheme", in: "//letterboxd.com/bob_42/films/", want: "bob_42"},
		{name: "handle with trailing junk", in: "carol!", want: "carol"},
		{name: "surrounding whitespace", in: "  dave  ", want: "dave"},
		{name: "no handle at all", in: "???", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHandle(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidHandle)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHandle_Idempotent(t *testing.T) {
	inputs := []string{"alice", "https://letterboxd.com/alice/", "Bob_42", "carol!"}

	for _, in := range inputs {
		once, err := NormalizeHandle(in)
		require.NoError(t, err)

		twice, err := NormalizeHandle(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalize(normalize(%q))", in)
	}
}
