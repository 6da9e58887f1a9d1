package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redbco/redb-esadapter/pkg/dbcapabilities"
)

// Standard adapter errors
var (
	// ErrIdentityMissing is returned when a datastore is registered without an identity
	ErrIdentityMissing = errors.New("datastore identity is required")

	// ErrIdentityDuplicate is returned when a datastore identity is already registered
	ErrIdentityDuplicate = errors.New("datastore identity is already registered")

	// ErrDatastoreNotFound is returned when an identity has no registered datastore
	ErrDatastoreNotFound = errors.New("datastore not found")

	// ErrCollectionNotFound is returned when a collection is not registered on a datastore
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrOperationNotSupported is returned when an operation is not supported by the engine
	ErrOperationNotSupported = errors.New("operation not supported by this engine")

	// ErrConnectionClosed is returned when attempting to use a closed session
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrAdapterNotFound is returned when no backend is registered for an engine
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrEngine is matched by every error reported by the engine itself
	ErrEngine = errors.New("engine error")
)

// EngineError carries a failure reported by the engine. The status and body
// are kept as the engine sent them.
type EngineError struct {
	Engine    dbcapabilities.EngineID
	Operation string
	Status    int
	Type      string
	Reason    string
	Body      []byte
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s failed with status %d", e.Engine, e.Operation, e.Status)
	if e.Type != "" {
		fmt.Fprintf(&b, ": %s", e.Type)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Is checks if the error is ErrEngine.
func (e *EngineError) Is(target error) bool {
	return target == ErrEngine
}

// NewEngineError creates a new EngineError.
func NewEngineError(engine dbcapabilities.EngineID, operation string, status int, errType, reason string, body []byte) *EngineError {
	return &EngineError{
		Engine:    engine,
		Operation: operation,
		Status:    status,
		Type:      errType,
		Reason:    reason,
		Body:      body,
	}
}

// UnsupportedOperationError is returned when an operation is not supported.
type UnsupportedOperationError struct {
	Engine    dbcapabilities.EngineID
	Operation string
	Reason    string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.Engine, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.Engine, e.Operation)
}

// Is checks if the error is ErrOperationNotSupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrOperationNotSupported
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(engine dbcapabilities.EngineID, operation string, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		Engine:    engine,
		Operation: operation,
		Reason:    reason,
	}
}

// ConnectionError is returned when a session cannot be established.
type ConnectionError struct {
	Engine dbcapabilities.EngineID
	Hosts  []string
	Cause  error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s: %v", e.Engine, strings.Join(e.Hosts, ","), e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnectionFailed
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(engine dbcapabilities.EngineID, hosts []string, cause error) *ConnectionError {
	return &ConnectionError{
		Engine: engine,
		Hosts:  append([]string(nil), hosts...),
		Cause:  cause,
	}
}

// ConfigurationError is returned when a configuration error occurs.
type ConfigurationError struct {
	Engine dbcapabilities.EngineID
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.Engine, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Engine, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(engine dbcapabilities.EngineID, field string, reason string) *ConfigurationError {
	return &ConfigurationError{
		Engine: engine,
		Field:  field,
		Reason: reason,
	}
}

// Resource types reported by NotFoundError.
const (
	ResourceDatastore  = "datastore"
	ResourceCollection = "collection"
)

// NotFoundError is returned when a datastore or collection is not registered.
type NotFoundError struct {
	ResourceType string
	ResourceName string
	Datastore    string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.ResourceType == ResourceCollection {
		return fmt.Sprintf("collection not found in datastore %s: %s", e.Datastore, e.ResourceName)
	}
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceName)
}

// Is checks if the error is ErrDatastoreNotFound or ErrCollectionNotFound.
func (e *NotFoundError) Is(target error) bool {
	switch e.ResourceType {
	case ResourceDatastore:
		return target == ErrDatastoreNotFound
	case ResourceCollection:
		return target == ErrCollectionNotFound
	}
	return false
}

// NewDatastoreNotFoundError creates a NotFoundError for an unknown identity.
func NewDatastoreNotFoundError(identity string) *NotFoundError {
	return &NotFoundError{ResourceType: ResourceDatastore, ResourceName: identity, Datastore: identity}
}

// NewCollectionNotFoundError creates a NotFoundError for an unknown collection.
func NewCollectionNotFoundError(identity, collection string) *NotFoundError {
	return &NotFoundError{ResourceType: ResourceCollection, ResourceName: collection, Datastore: identity}
}

// IsUnsupported checks if an error indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsNotFound reports whether the engine answered 404 (missing document or index).
func IsNotFound(err error) bool {
	var engErr *EngineError
	return errors.As(err, &engErr) && engErr.Status == http.StatusNotFound
}

// IsConflict reports whether the engine answered 409 (version conflict).
func IsConflict(err error) bool {
	var engErr *EngineError
	return errors.As(err, &engErr) && engErr.Status == http.StatusConflict
}

// Error codes returned by ErrorCode.
const (
	CodeOK                 = "ok"
	CodeIdentityMissing    = "identity_missing"
	CodeIdentityDuplicate  = "identity_duplicate"
	CodeDatastoreNotFound  = "datastore_not_found"
	CodeCollectionNotFound = "collection_not_found"
	CodeUnsupported        = "unsupported"
	CodeConnection         = "connection_failed"
	CodeConnectionClosed   = "connection_closed"
	CodeConfiguration      = "invalid_configuration"
	CodeAdapterNotFound    = "adapter_not_found"
	CodeEngine             = "engine_error"
	CodeCanceled           = "canceled"
	CodeInternal           = "internal"
)

// ErrorCode classifies err into a short stable code. Engine errors report
// their engine error type when they carry one.
func ErrorCode(err error) string {
	var engErr *EngineError
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &engErr):
		if engErr.Type != "" {
			return engErr.Type
		}
		return CodeEngine
	case errors.Is(err, ErrIdentityMissing):
		return CodeIdentityMissing
	case errors.Is(err, ErrIdentityDuplicate):
		return CodeIdentityDuplicate
	case errors.Is(err, ErrDatastoreNotFound):
		return CodeDatastoreNotFound
	case errors.Is(err, ErrCollectionNotFound):
		return CodeCollectionNotFound
	case errors.Is(err, ErrOperationNotSupported):
		return CodeUnsupported
	case errors.Is(err, ErrConnectionClosed):
		return CodeConnectionClosed
	case errors.Is(err, ErrConnectionFailed):
		return CodeConnection
	case errors.Is(err, ErrInvalidConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrAdapterNotFound):
		return CodeAdapterNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	}
	return CodeInternal
}
