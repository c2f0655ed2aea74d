// Package testdb provides helpers for tests that run against a real
// PostgreSQL database. Every helper skips the calling test when
// DATABASE_URL is unset, so integration suites degrade to no-ops on
// machines without a database.
package testdb
