// Package cli contains shared plumbing for the authbridge commands: typed
// errors that map to process exit codes, and table rendering for status
// output.
package cli
