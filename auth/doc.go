// Package auth owns the bearer credential lifecycle: loading the cached
// credential, refreshing it against the authorization server, persisting
// every update atomically, and supplying a valid access token on demand.
//
// The interactive consent flow itself is delegated to the scy auth flow
// (a local callback listener scoped to the consent round trip); this
// package only decides when it has to run, signalled via ErrAuthRequired.
package auth
