// Package gateway implements the access-control core of the MCP gateway:
// every inbound tool request is authenticated, authorized against the
// token's tool allowlist, rate limited on client and global scopes,
// bound to an upstream provider credential, and forwarded exactly once.
//
// Rejections are reported as structured payloads with a stable kind
// ("auth_error", "rate_limit", ...) so transports can serialize them
// without inspecting Go error chains. The Admin type carries the
// operator surface: issuing, revoking, and revealing client tokens and
// managing provider credentials.
package gateway
