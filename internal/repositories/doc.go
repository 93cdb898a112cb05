// Package repositories implements SQLite persistence for the download job tracker.
//
// Key Implementations:
//   - [JobRepository] : job records with ids drawn from the jobs_sequence table
//   - [VideoRepository] : canonical videos with an atomic get-or-create on the external id
//   - [ArtifactRepository] : produced files, at most one per video
//   - [Store] : all three, satisfying [models.Store]
//
// Job ids come from [NextSequence] rather than AUTOINCREMENT so that a deleted job's id is never
// handed out again, even after the row is gone. Writes that read before they write run inside a
// transaction; the connection string opens every transaction with BEGIN IMMEDIATE so concurrent
// writers are serialized by SQLite.
package repositories
