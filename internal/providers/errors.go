package providers

import "errors"

// Provider errors
var (
	// Configuration errors
	ErrInvalidProvider      = errors.New("invalid or unsupported storage provider")
	ErrMissingEndpoint      = errors.New("storage endpoint is required")
	ErrMissingBucket        = errors.New("storage bucket name is required")
	ErrMissingAccessKey     = errors.New("storage access key is required")
	ErrMissingSecretKey     = errors.New("storage secret key is required")
	ErrMissingRegion        = errors.New("storage region is required for this provider")
	ErrProviderNotSupported = errors.New("storage provider not supported")

	// Operation errors
	ErrBucketNotFound = errors.New("storage bucket not found")
	ErrInvalidDataURI = errors.New("invalid data URI")
)

// StorageError wraps provider-specific errors with additional context.
type StorageError struct {
	Provider  string
	Operation string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return "storage " + e.Provider + " " + e.Operation + " failed for key '" + e.Key + "': " + e.Err.Error()
	}
	return "storage " + e.Provider + " " + e.Operation + " failed: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with context.
func NewStorageError(provider, operation, key string, err error) *StorageError {
	return &StorageError{
		Provider:  provider,
		Operation: operation,
		Key:       key,
		Err:       err,
	}
}
