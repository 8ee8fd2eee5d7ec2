// Package logrus adapts github.com/sirupsen/logrus to shapecodec.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/shapecodec"
)

var _ shapecodec.Logger = Logger{}

// Logger writes through an entry, so callers may pre-bind fields.
// An "err" field holding an error is attached with WithError.
type Logger struct{ E *logrus.Entry }

// New wraps l. A nil l uses logrus.StandardLogger().
func New(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return Logger{E: logrus.NewEntry(l)}
}

func (l Logger) Debug(msg string, f shapecodec.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f shapecodec.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f shapecodec.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f shapecodec.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f shapecodec.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	data := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			data[logrus.ErrorKey] = err
			continue
		}
		data[k] = v
	}
	return l.E.WithFields(data)
}
