// Package cookie implements the pure cookie codec used by the credential
// store: parsing Set-Cookie response headers into durable records, merging
// records, and reconstructing Cookie request headers from them.
//
// The package also contains the auth-cookie classifier that distinguishes
// cookies belonging to the auth system from third-party cookies, and the
// change detector that decides whether a stored record mutation is relevant
// to the current session.
//
// Nothing in this package performs I/O. All functions are safe for
// concurrent use.
package cookie
