// Package cache implements the read-through, invalidate-on-write task cache.
//
// A Coordinator sits in front of a Backend (Redis or in-process). Backend
// failures and timeouts degrade to a miss or a no-op: they are logged and
// counted but never returned to the caller, so the cache can only make reads
// faster and never makes them fail.
package cache
