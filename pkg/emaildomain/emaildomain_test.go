package emaildomain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsCorporateEmailRejectsEveryPublicProvider(t *testing.T) {
	for _, domain := range publicProviders {
		require.False(t, IsCorporateEmail("user@"+domain), domain)
		require.False(t, IsCorporateEmail("User@"+domainUpper(domain)), domain)
	}
}

func TestIsCorporateEmail(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"jane@acme.io", true},
		{"JANE@Big-Corp.COM", true},
		{"ops@eng.globex.co.uk", true},
		{"a@b@initech.com", true},
		{"bob@gmail.com", false},
		{"bob@GMAIL.COM", false},
		{"no-at-sign.example.com", false},
		{"trailing@", false},
		{"", false},
		{"  spaced@hooli.xyz  ", true},
		{"proxy@privaterelay.appleid.com", false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsCorporateEmail(tc.email), tc.email)
	}
}

func TestExtractDomain(t *testing.T) {
	require.Equal(t, "acme.io", ExtractDomain("Jane@ACME.io"))
	require.Equal(t, "initech.com", ExtractDomain("a@b@initech.com"))
	require.Equal(t, "", ExtractDomain("nobody"))
}

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "bob@beta.io", NormalizeEmail("  Bob@Beta.IO "))
}

func TestDeriveCompanyName(t *testing.T) {
	cases := []struct {
		domain string
		want   string
	}{
		{"big-corp.com", "Big Corp"},
		{"acme.io", "Acme"},
		{"north_wind.co", "North Wind"},
		{"research.acme.io", "Research Acme"},
		{"ACME.IO", "Acme"},
		{"localhost", "Localhost"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveCompanyName(tc.domain), tc.domain)
	}
}

func TestValidateFirstName(t *testing.T) {
	require.True(t, ValidateFirstName("Al"))
	require.True(t, ValidateFirstName("  Zoë  "))
	require.False(t, ValidateFirstName(" A "))
	require.False(t, ValidateFirstName(""))

	long := make([]rune, 51)
	for i := range long {
		long[i] = 'x'
	}
	require.False(t, ValidateFirstName(string(long)))
	require.True(t, ValidateFirstName(string(long[:50])))
}

func domainUpper(domain string) string {
	out := []byte(domain)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 32
		}
	}
	return string(out)
}
