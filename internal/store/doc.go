// Package store defines the persistence contracts for tasks and background jobs.
// Implementations live under internal/platform; the service layer depends
// only on these interfaces.
package store
