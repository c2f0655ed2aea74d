// Package job implements the background job pipeline: typed payloads wrapped
// in envelopes, a dispatcher that persists and enqueues them after a write
// commits, and a consumer that runs registered handlers with exponential
// backoff retries and dead-lettering.
package job
