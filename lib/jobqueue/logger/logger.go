// Package logger defines the logging interface shared by every actor in the
// job queue: the supervisor, queue actors, and worker actors.
package logger

// StandardLogger is a subset of the ipfs go-log/v2 ZapEventLogger interface.
type StandardLogger interface {
	Debug(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// DiscardLogger is the zero-value StandardLogger: every call is a no-op.
type DiscardLogger struct{}

var _ StandardLogger = (*DiscardLogger)(nil)

func (d *DiscardLogger) Debug(args ...interface{})                       {}
func (d *DiscardLogger) Debugf(format string, args ...interface{})       {}
func (d *DiscardLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (d *DiscardLogger) Error(args ...interface{})                       {}
func (d *DiscardLogger) Errorf(format string, args ...interface{})       {}
func (d *DiscardLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (d *DiscardLogger) Info(args ...interface{})                        {}
func (d *DiscardLogger) Infof(format string, args ...interface{})        {}
func (d *DiscardLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (d *DiscardLogger) Warn(args ...interface{})                        {}
func (d *DiscardLogger) Warnf(format string, args ...interface{})        {}
func (d *DiscardLogger) Warnw(msg string, keysAndValues ...interface{})  {}
