// Package domain keeps the signing domains the service knows about. Each
// domain is read from the YAML catalog, turned into an EIP712Domain struct
// and hashed into its separator once at load time.
package domain
