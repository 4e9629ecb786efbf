// Package dclog defines the narrow logging interface the disk cache uses
// internally, plus two concrete implementations: a structured
// logiface/stumpy-backed logger and a logrus adapter, for callers already
// standardised on logrus. The Discard no-op is what diskcache uses when no
// Logger is configured. The interface follows the "depend on a narrow
// interface, not a concrete logging library" shape, with
// Info/Warn/Error/Debug instead of a logrus.FieldLogger subset, since the
// disk cache has no SQL-statement-specific logging needs.
package dclog

type (
	// Logger is the logging interface consumed throughout diskcache.
	// Implementations must be safe for concurrent use; WithField/
	// WithFields/WithError return a new Logger carrying the added
	// context, the caller's Logger is never mutated.
	Logger interface {
		WithField(key string, value any) Logger
		WithFields(fields map[string]any) Logger
		WithError(err error) Logger
		Debug(args ...any)
		Info(args ...any)
		Warn(args ...any)
		Error(args ...any)
	}

	// Discard implements Logger by doing nothing.
	Discard struct{}
)

var _ Logger = Discard{}

func (Discard) WithField(string, any) Logger     { return Discard{} }
func (Discard) WithFields(map[string]any) Logger { return Discard{} }
func (Discard) WithError(error) Logger           { return Discard{} }
func (Discard) Debug(...any)                     {}
func (Discard) Info(...any)                      {}
func (Discard) Warn(...any)                      {}
func (Discard) Error(...any)                     {}
