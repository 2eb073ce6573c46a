package domain

import "go.trai.ch/zerr"

var (
	// ErrRootNotSet is returned when a session is requested before the cache root was configured.
	ErrRootNotSet = zerr.New("cache root is not set")

	// ErrAlreadyConfigured is returned when the cache root is set a second time with a different path.
	ErrAlreadyConfigured = zerr.New("cache root is already configured")

	// ErrReservedKey is returned when the inputs use the key reserved for the code identity.
	ErrReservedKey = zerr.New("input key is reserved")

	// ErrUnhashableInput is returned when an input value has no canonical serialization.
	ErrUnhashableInput = zerr.New("input value cannot be hashed")

	// ErrEmptyCodeIdentity is returned when a fingerprint is requested without a code identity.
	ErrEmptyCodeIdentity = zerr.New("code identity must not be empty")

	// ErrInvalidOutputPath is returned when an output location escapes the cache root or uses a reserved name.
	ErrInvalidOutputPath = zerr.New("invalid output path")

	// ErrInvalidFingerprint is returned when a fingerprint does not have the computed shape.
	ErrInvalidFingerprint = zerr.New("invalid fingerprint")

	// ErrUnexpectedContent is returned when an output location holds files that were not restored from the cache.
	ErrUnexpectedContent = zerr.New("output location contains content not owned by the cache")

	// ErrLockTimeout is returned when the fingerprint lock cannot be acquired in time.
	ErrLockTimeout = zerr.New("timed out waiting for cache lock")

	// ErrCommitFailed is returned when publishing an entry into the store fails.
	ErrCommitFailed = zerr.New("failed to commit cache entry")

	// ErrRestoreFailed is returned when mirroring an entry into the output location fails.
	ErrRestoreFailed = zerr.New("failed to restore cache entry")

	// ErrInvalidSessionState is returned when a session operation is called out of order.
	ErrInvalidSessionState = zerr.New("invalid session state")

	// ErrEntryNotFound is returned when a complete entry does not exist for a fingerprint.
	ErrEntryNotFound = zerr.New("cache entry not found")

	// ErrEntryCorrupt is returned when an entry's files no longer match its manifest.
	ErrEntryCorrupt = zerr.New("cache entry is corrupt")

	// ErrManifestReadFailed is returned when an entry manifest cannot be read.
	ErrManifestReadFailed = zerr.New("failed to read entry manifest")

	// ErrManifestUnmarshalFailed is returned when an entry manifest cannot be decoded.
	ErrManifestUnmarshalFailed = zerr.New("failed to unmarshal entry manifest")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrInvalidLinkMode is returned when the configured link mode is unknown.
	ErrInvalidLinkMode = zerr.New("invalid link mode, expected 'auto', 'symlink' or 'copy'")

	// ErrInvalidInputSpec is returned when a command line input is not of the form key=value.
	ErrInvalidInputSpec = zerr.New("invalid input, expected key=value")

	// ErrMissingCodeIdentity is returned when neither a code identity nor code paths were given.
	ErrMissingCodeIdentity = zerr.New("missing code identity, pass --code-id or --code-path")

	// ErrCommandFailed is returned when a memoized command exits unsuccessfully.
	ErrCommandFailed = zerr.New("command failed")

	// ErrFileOpenFailed is returned when a file cannot be opened.
	ErrFileOpenFailed = zerr.New("failed to open file")

	// ErrFileHashFailed is returned when hashing a file fails.
	ErrFileHashFailed = zerr.New("failed to hash file content")
)
