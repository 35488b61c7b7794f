package model

import "gitlab.com/tozd/go/errors"

// Error kinds surfaced while applying changes. Match with errors.Is.
var (
	// ErrPathEscapesRoot marks a path that is absolute or climbs above the working directory.
	ErrPathEscapesRoot = errors.Base("path escapes working directory")

	// ErrPathProtected marks a path matching a protected pattern.
	ErrPathProtected = errors.Base("path is protected")

	ErrAlreadyExists = errors.Base("file already exists")
	ErrNotFound      = errors.Base("file not found")

	// ErrMarkerNotFound means no acceptable occurrence of the marker lines exists.
	ErrMarkerNotFound = errors.Base("marker not found")

	ErrIO = errors.Base("i/o failure")

	// ErrPayloadMalformed means the edit document does not have the expected shape.
	ErrPayloadMalformed = errors.Base("payload malformed")
)

// IsSkip reports whether err should skip a change rather than fail it.
func IsSkip(err error) bool {
	return errors.Is(err, ErrPathEscapesRoot) || errors.Is(err, ErrPathProtected)
}
