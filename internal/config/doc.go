// Package config loads the JSON configuration of the TypedSign daemon:
// listener, logging, job storage and queue backends, processor sizing, the
// domain catalog location and the named signing keys.
package config
