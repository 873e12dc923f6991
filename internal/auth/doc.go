// Package auth provides bearer-token authentication for the bridge API.
//
// Tokens are HS256-signed JWTs whose "sub" claim names the client. The
// Verifier both mints tokens (the server's token subcommand) and verifies
// them; Middleware guards the /api/ routes when auth is enabled, placing
// the verified subject on the request context.
package auth
