package datastore

import (
	"fmt"
	"strings"
	"time"

	"github.com/redbco/redb-esadapter/pkg/logger"
)

// LogContext provides structured context for datastore logging
type LogContext struct {
	Engine     string
	Identity   string
	Collection string
	Hosts      []string
	Operation  string
	Elapsed    time.Duration
}

// DatastoreLogger provides unified logging for datastore lifecycle and operations
type DatastoreLogger struct {
	logger *logger.Logger
}

// NewDatastoreLogger creates a new datastore logger. A nil logger discards everything.
func NewDatastoreLogger(l *logger.Logger) *DatastoreLogger {
	return &DatastoreLogger{logger: l}
}

// Logger returns the underlying logger, possibly nil
func (dl *DatastoreLogger) Logger() *logger.Logger {
	if dl == nil {
		return nil
	}
	return dl.logger
}

func (dl *DatastoreLogger) enabled() bool {
	return dl != nil && dl.logger != nil
}

// LogConnectionAttempt logs when a datastore registration starts connecting
func (dl *DatastoreLogger) LogConnectionAttempt(ctx LogContext) {
	if !dl.enabled() {
		return
	}
	dl.logger.Info("%s", dl.formatConnectionMessage("Attempting connection", ctx))
}

// LogConnectionSuccess logs a registered datastore
func (dl *DatastoreLogger) LogConnectionSuccess(ctx LogContext, collections int) {
	if !dl.enabled() {
		return
	}
	dl.logger.Info("%s collections=%d", dl.formatConnectionMessage("Datastore registered", ctx), collections)
}

// LogConnectionFailure logs a failed registration. Client datastores are not
// critical to the service, so this is a warning.
func (dl *DatastoreLogger) LogConnectionFailure(ctx LogContext, err error) {
	if !dl.enabled() {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatConnectionMessage("Connection failed", ctx), err)
}

// LogTeardownSuccess logs a removed datastore
func (dl *DatastoreLogger) LogTeardownSuccess(ctx LogContext) {
	if !dl.enabled() {
		return
	}
	dl.logger.Info("%s", dl.formatConnectionMessage("Datastore torn down", ctx))
}

// LogTeardownFailure logs a session that failed to close. Teardown still succeeds.
func (dl *DatastoreLogger) LogTeardownFailure(ctx LogContext, err error) {
	if !dl.enabled() {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatConnectionMessage("Session close failed during teardown", ctx), err)
}

// LogOperationSuccess logs a completed operation at debug level
func (dl *DatastoreLogger) LogOperationSuccess(ctx LogContext) {
	if !dl.enabled() {
		return
	}
	dl.logger.Debug("%s", dl.formatOperationMessage("Operation completed", ctx))
}

// LogOperationFailure logs a failed operation
func (dl *DatastoreLogger) LogOperationFailure(ctx LogContext, err error) {
	if !dl.enabled() {
		return
	}
	dl.logger.Warn("%s: %v", dl.formatOperationMessage("Operation failed", ctx), err)
}

// LogStub logs a lifecycle hook that has nothing to do on this engine
func (dl *DatastoreLogger) LogStub(ctx LogContext) {
	if !dl.enabled() {
		return
	}
	dl.logger.Info("%s", dl.formatOperationMessage("Not applicable, skipped", ctx))
}

// LogHealthCheck logs datastore health check results
func (dl *DatastoreLogger) LogHealthCheck(ctx LogContext, err error) {
	if !dl.enabled() {
		return
	}
	if err == nil {
		dl.logger.Debug("%s", dl.formatConnectionMessage("Health check passed", ctx))
		return
	}
	dl.logger.Warn("%s: %v", dl.formatConnectionMessage("Health check failed", ctx), err)
}

func (dl *DatastoreLogger) formatConnectionMessage(action string, ctx LogContext) string {
	base := fmt.Sprintf("[datastore:%s] %s", ctx.Engine, action)
	if ctx.Identity != "" {
		base = fmt.Sprintf("%s identity=%s", base, ctx.Identity)
	}
	if len(ctx.Hosts) > 0 {
		base = fmt.Sprintf("%s hosts=%s", base, strings.Join(ctx.Hosts, ","))
	}
	return base
}

func (dl *DatastoreLogger) formatOperationMessage(action string, ctx LogContext) string {
	base := fmt.Sprintf("[datastore:%s] %s", ctx.Engine, action)
	if ctx.Operation != "" {
		base = fmt.Sprintf("%s operation=%s", base, ctx.Operation)
	}
	if ctx.Identity != "" {
		base = fmt.Sprintf("%s identity=%s", base, ctx.Identity)
	}
	if ctx.Collection != "" {
		base = fmt.Sprintf("%s collection=%s", base, ctx.Collection)
	}
	if ctx.Elapsed > 0 {
		base = fmt.Sprintf("%s elapsed=%s", base, ctx.Elapsed)
	}
	return base
}
