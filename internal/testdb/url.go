//go:build integration

package testdb

import (
	"net/url"
	"os"
	"testing"
)

// EnvDatabaseURL names the variable holding the test database connection string.
const EnvDatabaseURL = "DATABASE_URL"

// URL returns the test database URL, skipping the test when none is set.
func URL(t *testing.T) string {
	t.Helper()

	raw := os.Getenv(EnvDatabaseURL)
	if raw == "" {
		t.Skipf("%s not set, skipping database test", EnvDatabaseURL)
	}
	return raw
}

// MaskURL hides the password in a connection string so it can be logged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
