// Package config loads gateway configuration from a YAML file with
// environment overrides. Secrets are never inlined: the encryption and
// admin signing keys are given as secret references (for example
// "secretref:env:NEXUS_ENCRYPTION_KEY") and resolved at load time, so a
// missing or malformed key fails startup instead of the first request.
package config
