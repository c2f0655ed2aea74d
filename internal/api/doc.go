// Package api exposes TaskService over HTTP. Handlers decode and validate
// requests, call the service and map its errors to status codes and safe
// messages; they contain no business logic.
package api
