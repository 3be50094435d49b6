// Package web3 holds the chain connectivity used by the signing service.
// Domains may name the RPC endpoint of their chain; the daemon checks at
// startup that the endpoint reports the chain id the domain commits to.
package web3
