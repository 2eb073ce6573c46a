package domain

import "path/filepath"

const (
	// CacheDirName is the directory inside an output location that holds its entries.
	CacheDirName = ".cache"

	// LocksDirName is the directory under the cache root that holds fingerprint lock files.
	LocksDirName = ".locks"

	// DefaultRootDirName is the cache root used when the config does not name one.
	DefaultRootDirName = ".memo"

	// MarkerFileName is the zero-byte file that proves an entry was fully committed.
	MarkerFileName = ".memo.complete"

	// ManifestFileName is the entry manifest written just before the marker.
	ManifestFileName = ".memo.manifest.json"

	// RestoreRecordFileName records which entry an output location currently mirrors.
	RestoreRecordFileName = "restored.json"

	// TempDirPrefix prefixes the sibling directories a commit builds an entry in.
	TempDirPrefix = ".tmp-"

	// StagingDirPrefix prefixes the private directories Session.Run computes in.
	StagingDirPrefix = ".staging-"

	// MirrorTempPrefix prefixes directories that hold links and copies while they are moved
	// into or out of an output location.
	MirrorTempPrefix = ".mirror-"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "memo.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600

	// OutputDirEnvVar is exported to memoized commands with the directory they must write into.
	OutputDirEnvVar = "MEMO_OUTPUT_DIR"
)

// IsReservedEntryName reports whether name is bookkeeping that never appears in an output location.
func IsReservedEntryName(name string) bool {
	return name == MarkerFileName || name == ManifestFileName
}

// CachePath returns the cache directory of an output location.
func CachePath(outputDir string) string {
	return filepath.Join(outputDir, CacheDirName)
}

// RestoreRecordPath returns the restore record of an output location.
func RestoreRecordPath(outputDir string) string {
	return filepath.Join(outputDir, CacheDirName, RestoreRecordFileName)
}
