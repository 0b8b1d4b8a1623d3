package audit

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes entries as JSON lines.
type LogrusLogger struct {
	log *logrus.Logger
}

// NewLogrusLogger creates a logger writing to w.
func NewLogrusLogger(w io.Writer) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	// Entries carry their own timestamp.
	l.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
	return &LogrusLogger{log: l}
}

func (l *LogrusLogger) Log(_ context.Context, e *Entry) error {
	fields := logrus.Fields{
		"timestamp":  e.Timestamp,
		"requestId":  e.RequestID,
		"action":     e.Action,
		"userId":     e.UserID,
		"ip":         e.IP,
		"userAgent":  e.UserAgent,
		"success":    e.Success,
		"status":     e.Status,
		"durationMs": e.DurationMs,
	}
	if e.Route != "" {
		fields["route"] = e.Route
	}
	if e.OrgID != "" {
		fields["orgId"] = e.OrgID
	}
	if e.ErrorCode != "" {
		fields["errorCode"] = e.ErrorCode
	}
	entry := l.log.WithFields(fields)
	if e.Success {
		entry.Info("audit")
	} else {
		entry.Warn("audit")
	}
	return nil
}
