package blob

import (
	"context"
	"fmt"
	"os"
)

// Open selects a Store implementation from the environment:
//
//	ECHOCORE_BLOB_DRIVER   fs|s3|memory (default fs)
//	ECHOCORE_BLOB_FS_ROOT  directory root when driver=fs (default ./echodata)
//
// S3-specific variables are documented on the s3 driver package.
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("ECHOCORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("ECHOCORE_BLOB_FS_ROOT"))
	case DriverS3:
		return OpenS3FromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
