package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields for one in-flight KV operation:
// enough to correlate a log line back to the connection, opcode, and
// opaque that produced it.
type LogContext struct {
	Endpoint  string // node address the operation is dispatched to
	Bucket    string
	Scope     string
	Collection string
	OpCode    string
	Opaque    uint32
	VBucket   uint16
	StartTime time.Time
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if absent.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for an operation about to be
// dispatched to endpoint.
func NewLogContext(endpoint string) *LogContext {
	return &LogContext{Endpoint: endpoint, StartTime: time.Now()}
}

// Clone returns a copy of lc, or nil if lc is nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOperation returns a copy with the opcode/opaque/vbucket set.
func (lc *LogContext) WithOperation(opCode string, opaque uint32, vbucket uint16) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OpCode = opCode
		clone.Opaque = opaque
		clone.VBucket = vbucket
	}
	return clone
}

// WithCollection returns a copy with the bucket/scope/collection set.
func (lc *LogContext) WithCollection(bucket, scope, collection string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Bucket = bucket
		clone.Scope = scope
		clone.Collection = collection
	}
	return clone
}

// DurationMs returns the elapsed time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// appendContextFields prepends lc's non-zero fields to args so they appear
// first in the log line.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 14+len(args))
	if lc.Endpoint != "" {
		fields = append(fields, "endpoint", lc.Endpoint)
	}
	if lc.Bucket != "" {
		fields = append(fields, "bucket", lc.Bucket)
	}
	if lc.Scope != "" {
		fields = append(fields, "scope", lc.Scope)
	}
	if lc.Collection != "" {
		fields = append(fields, "collection", lc.Collection)
	}
	if lc.OpCode != "" {
		fields = append(fields, "opcode", lc.OpCode)
	}
	if lc.Opaque != 0 {
		fields = append(fields, "opaque", lc.Opaque)
	}
	if lc.VBucket != 0 {
		fields = append(fields, "vbucket", lc.VBucket)
	}

	return append(fields, args...)
}
