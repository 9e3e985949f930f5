// Package snapshot persists encrypted session snapshots.
//
// A [Record] is the flattened, storage-friendly form of a session's state:
// timestamps are RFC 3339 strings and every field is plain data. The [Store]
// JSON-encodes a record, seals it with a [Cipher], and hands the resulting
// opaque string to a [Backend].
//
// # Envelope
//
// The key is derived once with scrypt from a deployment secret and a fixed
// salt. Each write uses AES-256-GCM with a fresh random 16-byte nonce, and the
// stored value is
//
//	base64(nonce ‖ tag ‖ ciphertext)
//
// An entry that fails to decode or authenticate is treated as absent: the
// Store logs it, deletes it from the backend, and reports "not found".
//
// # Backends
//
// [MemoryBackend] is a process-local map, [RedisBackend] keeps entries in
// Redis with a fixed expiry, and [SQLiteBackend] keeps them in a single
// SQLite file. Backends may additionally implement [Counter], [Lister], and
// [Swapper]; the Store reports unsupported introspection as unknown rather
// than emulating it.
package snapshot
