// Package keypool manages per-provider pools of upstream API credentials
// and selects one per outbound call.
//
// Selection supports round-robin rotation (fair, per-provider cursor) and
// uniform random choice over the currently active credentials. Credential
// status transitions are administrative actions; the pool only filters by
// current status.
package keypool
