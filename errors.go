package catso

import "errors"

// Error kinds returned by the skill components. Components wrap these with
// context, so callers should match with errors.Is.
var (
	ErrSecretsUnavailable   = errors.New("secrets unavailable")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUpstreamFetchFailed  = errors.New("upstream fetch failed")
	ErrNoImageAvailable     = errors.New("no image available")
	ErrDownloadFailed       = errors.New("download failed")
	ErrUploadFailed         = errors.New("upload failed")
	ErrInvalidIntent        = errors.New("invalid intent")
	ErrInvalidApplication   = errors.New("invalid application id")
)
