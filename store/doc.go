// Package store provides the DynamoDB data access layer for the conversation
// persistence core.
//
// All record kinds live in one physical table addressed by a partition key
// ("pk") and a sort key ("sk"). A single global secondary index re-exposes
// records under an alternate key pair ("gsi1pk"/"gsi1sk") for reverse
// lookups: listing a user's chats newest-first and resolving a user by email.
//
// # Operations
//
//   - [Store.Put] — write a record, optionally failing with [ErrAlreadyExists]
//     when a record with the same primary key exists.
//   - [Store.Get] — point read, [ErrNotFound] when absent.
//   - [Store.QueryPrefix] — ordered range read over a partition by sort-key
//     prefix.
//   - [Store.QueryIndex] — the same range read through the secondary index.
//   - [Store.Update] — partial update driven by per-field [FieldOp] values
//     (set, remove, or leave unchanged), returning the post-update record.
//   - [Store.Delete] — idempotent point delete.
//
// No cross-record atomicity is provided. Callers sequence multi-record
// operations explicitly and must tolerate partial completion; see the chat
// package for how cascades and eviction are ordered, and the stream package
// for the sweep that reclaims orphans.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - record doesn't exist
//   - [ErrAlreadyExists] - primary key already taken (or duplicate email)
//   - [ErrForbidden] - ownership check failed (returned by callers, not here)
//
// Any other error is a raw backing-store failure and should be treated as
// retryable by the caller; the store never retries on its own.
package store
