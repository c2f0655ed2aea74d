// Package postgres provides PostgreSQL implementations of the task and job
// stores, using the pgx database/sql driver. It also owns the embedded goose
// migrations that create the schema those stores expect.
package postgres
