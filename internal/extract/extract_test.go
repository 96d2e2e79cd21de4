package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_EmailAndPhone(t *testing.T) {
	t.Parallel()

	c := Extract("Call (512) 555-0134 or email jane.doe@acmelending.com today")

	assert.Equal(t, []string{"jane.doe@acmelending.com"}, c.Emails)
	assert.Equal(t, []string{"(512) 555-0134"}, c.Phones)
	assert.False(t, c.Empty())
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	assert.True(t, Extract("").Empty())
	assert.True(t, Extract("no contact details here").Empty())
}

func TestExtract_PhoneFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"tel 512-555-0134", "512-555-0134"},
		{"tel 512.555.0134", "512.555.0134"},
		{"tel 5125550134", "5125550134"},
		{"tel +1 512 555 0134", "+1 512 555 0134"},
		{"tel 1-512-555-0134", "1-512-555-0134"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			c := Extract(tt.in)
			require.Len(t, c.Phones, 1)
			assert.Equal(t, tt.want, c.Phones[0])
		})
	}
}

func TestExtract_DedupesInOrder(t *testing.T) {
	t.Parallel()

	c := Extract("bob@acme.com jane@acme.com bob@acme.com 512-555-0101 512-555-0101")

	assert.Equal(t, []string{"bob@acme.com", "jane@acme.com"}, c.Emails)
	assert.Equal(t, []string{"512-555-0101"}, c.Phones)
}

func TestExtract_FiltersRoleAddresses(t *testing.T) {
	t.Parallel()

	text := "noreply@acme.com support@acme.com info@acme.com admin@acme.com " +
		"someone@example.com test@acme.com privacy@acme.com abuse@acme.com " +
		"NoReply@Acme.com jane@acme.com"

	c := Extract(text)
	assert.Equal(t, []string{"jane@acme.com"}, c.Emails)
}

func TestExtract_FilterRunsBeforeCap(t *testing.T) {
	t.Parallel()

	var parts []string
	for i := 0; i < 6; i++ {
		parts = append(parts, fmt.Sprintf("support%d@acme.com", i))
	}
	for i := 1; i <= 6; i++ {
		parts = append(parts, fmt.Sprintf("loan%d@acme.com", i))
	}

	c := Extract(strings.Join(parts, " "))

	assert.Equal(t, []string{
		"loan1@acme.com", "loan2@acme.com", "loan3@acme.com", "loan4@acme.com", "loan5@acme.com",
	}, c.Emails)
}

func TestExtract_CapsPhones(t *testing.T) {
	t.Parallel()

	var parts []string
	for i := 1; i <= 7; i++ {
		parts = append(parts, fmt.Sprintf("512-555-010%d", i))
	}

	c := Extract(strings.Join(parts, " "))

	require.Len(t, c.Phones, 5)
	assert.Equal(t, "512-555-0101", c.Phones[0])
	assert.Equal(t, "512-555-0105", c.Phones[4])
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	text := "jane@acme.com (512) 555-0134 bob@acme.com"
	assert.Equal(t, Extract(text), Extract(text))
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "5125550134", NormalizePhone("(512) 555-0134"))
	assert.Equal(t, "15125550134", NormalizePhone("+1 512.555.0134"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}
