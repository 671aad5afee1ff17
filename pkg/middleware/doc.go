// Package middleware provides observability hooks for the guard and
// session layers: Prometheus metrics for guard decisions, role
// verification latency, and in-flight session checks.
package middleware
