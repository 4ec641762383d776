// Package download implements the verified download engine subforge uses for
// every large external artifact: release archives, standalone executables and
// Whisper model weights.
//
// # Transfer Model
//
// A download is described by a Task. Each attempt runs four steps strictly in
// order:
//
//  1. Resume probe: a HEAD request reports the full size and whether the
//     server accepts byte ranges. A partial temp file is resumed only when
//     ranges are supported and the partial is shorter than the full size.
//  2. Streamed transfer: the body is copied in ChunkSize pieces straight
//     into the temp file. A server that answers a range request with a full
//     200 body restarts the file from byte zero instead of appending.
//  3. Integrity check: when the task carries a SHA-256 digest the temp file
//     is hashed and compared case-insensitively.
//  4. Atomic publish: the temp file is renamed onto the target path.
//
// # Retries
//
// Attempts are wrapped in a bounded retry loop (DefaultMaxAttempts) with an
// exponential backoff schedule starting at DefaultInitialBackoff. Checksum
// mismatches are never retried. After the final attempt the temp file is
// removed and a *FailedError carrying the last cause is returned.
//
// # Cancellation
//
// Cancelling the context aborts the in-flight request. The temp file is left
// on disk so the next call can resume, and neither the checksum nor the
// publish step runs.
package download
