package migration

import "errors"

// ErrDirectoryRead indicates the migrations directory could not be listed.
var ErrDirectoryRead = errors.New("reading migrations directory")

// ErrFileRead indicates a single migration file could not be read.
var ErrFileRead = errors.New("reading migration file")

// ErrDuplicateID indicates two files map to the same identifier when compared
// case-insensitively.
var ErrDuplicateID = errors.New("duplicate migration identifier")
