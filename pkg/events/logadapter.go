package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/ghuser/secondchance/pkg/logger"
)

// logAdapter routes Watermill logs to logger.Logger. Trace is logged at debug.
type logAdapter struct{ log logger.Logger }

func newLogAdapter(log logger.Logger) *logAdapter { return &logAdapter{log: log} }

func (a *logAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(args(fields), "error", err)...)
}

func (a *logAdapter) Info(msg string, fields watermill.LogFields) { a.log.Info(msg, args(fields)...) }

func (a *logAdapter) Debug(msg string, fields watermill.LogFields) { a.log.Debug(msg, args(fields)...) }

func (a *logAdapter) Trace(msg string, fields watermill.LogFields) { a.log.Debug(msg, args(fields)...) }

func (a *logAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &logAdapter{log: a.log.With(args(fields)...)}
}

func args(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}
