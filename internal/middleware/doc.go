// Package middleware provides HTTP middleware for the ops server.
//
// It includes:
//   - Access logging with W3C extended field order
//   - Prometheus request metrics labelled by route template
package middleware
