// Package session implements a durable, file-backed store of short-lived
// authenticated sessions.
//
// Each session is one JSON file named <session_id>.json under the store
// directory. The payload (session_id, user_id, username, role, tenant_id,
// tenant_name, created_at, expires_at) is an external contract for operators
// and stays stable across releases.
//
// Writes are atomic (temp file + rename), so concurrent readers and the
// cleanup scanner never observe a half-written record. Reads self-heal:
// corrupt or expired files are deleted and reported as not found. Operations
// on distinct session ids never interfere; no global lock is held.
//
// A session is never a source of truth for identity. It maps an opaque id to
// a user id; privileged decisions re-derive role and tenant from the
// authoritative records at decision time.
package session
