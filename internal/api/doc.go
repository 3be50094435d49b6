// Package api exposes the REST surface of the signing daemon: submitting and
// querying signature jobs, synchronous typed-data hashing and recovery, and
// read-only views of the configured domains, message kinds and keys.
package api
