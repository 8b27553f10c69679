// Package health provides liveness and readiness checks for the
// gateway's dependencies: the token/credential database and the
// per-provider credential pools. Checks are aggregated so an operator
// endpoint can report one overall status with per-check detail.
package health
