// Package api implements the HTTP surface of the queue daemon. Handlers
// translate between JSON requests and the queue engine API, mapping
// domain error categories onto HTTP status codes. Routing uses chi and
// all responses share the JSON envelope in responses.go.
package api
