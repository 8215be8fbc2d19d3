// Package fetch retrieves items from upstream sources.
//
// A fetch never fails with an error: upstream failure is represented as zero
// items plus a list of per-tier diagnostics, so the caller can always tell
// which layer broke. Profile and hashtag sources walk a ladder of fetch
// tiers in strict priority order, stopping at the first tier that yields
// items; generic feed URLs are fetched directly, with failover across
// configured mirror instances when the URL belongs to one.
package fetch
