// Package storage persists channel configuration, the delivery ledger and
// the name-resolution cache.
//
// Channels are stored as one JSON document per channel id plus a separate
// index of all ids; ledger entries are bounded ordered sets keyed by
// (channel, source). Two drivers: "file" (dependency-free JSON documents)
// and "sqlite" (optional build tag).
package storage
