// Package models defines the domain entities and persistence interfaces of the download job tracker.
//
// Entities:
//   - [Job] : one client-visible download request with a [JobStatus] and percent progress
//   - [Video] : canonical record of a source video, keyed by the download engine's id
//   - [Artifact] : the one produced output file of a [Video]
//   - [Event] : a typed notification emitted by the download engine
//
// [JobStatus] encodes the lifecycle graph. Statuses only advance; [StatusError] is reachable
// from any non-terminal status and [StatusFinished] and [StatusError] are terminal.
// [JobUpdate] carries partial updates and is validated against that graph by [Job.Apply].
//
// The [Store] interface (a union of [JobStore], [VideoStore] and [ArtifactStore]) is implemented
// by the in-memory registry (internal/registry) and the SQLite repositories (internal/repositories).
package models
