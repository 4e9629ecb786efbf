package dclog

import "github.com/sirupsen/logrus"

type (
	// Logrus adapts a logrus.FieldLogger to Logger.
	Logrus struct{ logrusLogger }

	//lint:ignore U1000 used to embed without exporting
	logrusLogger = logrus.FieldLogger
)

var _ Logger = Logrus{}

// NewLogrus wraps l as a Logger.
func NewLogrus(l logrus.FieldLogger) Logrus {
	return Logrus{logrusLogger: l}
}

func (x Logrus) WithField(key string, value any) Logger {
	return Logrus{logrusLogger: x.logrusLogger.WithField(key, value)}
}

func (x Logrus) WithFields(fields map[string]any) Logger {
	return Logrus{logrusLogger: x.logrusLogger.WithFields(fields)}
}

func (x Logrus) WithError(err error) Logger {
	return Logrus{logrusLogger: x.logrusLogger.WithError(err)}
}

func (x Logrus) Debug(args ...any) { x.logrusLogger.Debug(args...) }
func (x Logrus) Info(args ...any)  { x.logrusLogger.Info(args...) }
func (x Logrus) Warn(args ...any)  { x.logrusLogger.Warn(args...) }
func (x Logrus) Error(args ...any) { x.logrusLogger.Error(args...) }
