// Package message maps message kinds to typed-data structs. A kind names a
// primary type and knows how to decode its JSON payload into a value the
// eip712 encoder can hash.
package message
