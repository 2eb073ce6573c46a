package memo

import "go.trai.ch/memo/internal/core/domain"

// Errors returned by the cache. Match them with errors.Is.
var (
	ErrRootNotSet          = domain.ErrRootNotSet
	ErrAlreadyConfigured   = domain.ErrAlreadyConfigured
	ErrReservedKey         = domain.ErrReservedKey
	ErrUnhashableInput     = domain.ErrUnhashableInput
	ErrEmptyCodeIdentity   = domain.ErrEmptyCodeIdentity
	ErrInvalidOutputPath   = domain.ErrInvalidOutputPath
	ErrUnexpectedContent   = domain.ErrUnexpectedContent
	ErrLockTimeout         = domain.ErrLockTimeout
	ErrCommitFailed        = domain.ErrCommitFailed
	ErrRestoreFailed       = domain.ErrRestoreFailed
	ErrInvalidSessionState = domain.ErrInvalidSessionState
	ErrEntryNotFound       = domain.ErrEntryNotFound
	ErrEntryCorrupt        = domain.ErrEntryCorrupt
	ErrInvalidLinkMode     = domain.ErrInvalidLinkMode
)
