// Package blob re-exports the artifact storage abstractions so call
// sites depend on one import instead of the core and driver packages.
package blob

import (
	"echocore/internal/blob/core"
)

type (
	// Driver identifies a storage backend driver.
	Driver = core.Driver
	// PutOptions configures an artifact write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored artifact metadata.
	Info = core.Info
	// Store is the interface implemented by storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory

	// ContentTypeXML is the content type for stored instrument XML.
	ContentTypeXML = core.ContentTypeXML
	// ContentTypeCSV is the content type for CSV export artifacts.
	ContentTypeCSV = core.ContentTypeCSV
	// ContentTypeJSON is the content type for JSON export artifacts.
	ContentTypeJSON = core.ContentTypeJSON
)

// ErrUnsupported indicates an operation a driver does not provide.
var ErrUnsupported = core.ErrUnsupported
