// Package memo caches the directory outputs of expensive, deterministic computations.
//
// A computation is identified by its fingerprint: a SHA-256 digest of the canonical
// encoding of its inputs together with a caller-supplied code identity. Committed
// results live below a single cache root:
//
//	<root>/.locks/<fingerprint>
//	<root>/<output>/.cache/<fingerprint>/
//
// and are mirrored into <root>/<output> with symlinks, or copies where links are
// unavailable. An entry becomes visible through a single rename after its files,
// its manifest and its completion marker have been written, so readers never
// observe a partial entry. Producers of the same fingerprint are serialized by an
// advisory file lock and at most one entry is ever stored per fingerprint.
//
// The usual protocol is
//
//	sess, err := memo.NewSession("worker_004", "v1", map[string]any{"n": 4, "val": 1}, "fit")
//	restored, err := sess.TryRestore(ctx)
//	if !restored {
//		// write results into sess.OutputDir()
//		err = sess.Commit(ctx)
//	}
//
// Session.Run combines the three steps and computes into a private directory,
// which makes it safe for concurrent producers that share an output location.
package memo
