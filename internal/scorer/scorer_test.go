package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		email  string
		phone  string
		source string
		want   int
	}{
		{"nothing", "", "", "", 0},
		{"email only", "jane@acme.com", "", "https://acme.com/team", 50},
		{"phone only", "", "5125550134", "https://acme.com/team", 40},
		{"both", "jane@acme.com", "5125550134", "search_snippet", 90},
		{"both trusted", "jane@acme.com", "5125550134", "https://www.realtor.com/agent/jane", 100},
		{"email trusted", "jane@acme.com", "", "https://www.linkedin.com/in/jane", 60},
		{"trusted alone", "", "", "https://www.zillow.com/profile/jane", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tt.email, tt.phone, tt.source)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestIsTrustedSource(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTrustedSource("https://realtor.com/x"))
	assert.False(t, IsTrustedSource("https://acme.com"))
	assert.False(t, IsTrustedSource(""))
}
