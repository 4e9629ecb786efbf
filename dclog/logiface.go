package dclog

import (
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

type (
	// Logiface adapts a logiface.Logger[*stumpy.Event] (structured JSON
	// logging via stumpy) to Logger. Unlike Logrus's thin pass-through,
	// arguments passed to Debug/Info/Warn/Error are joined into the
	// event's message field, since logiface builds one field at a time
	// rather than accepting variadic args directly.
	Logiface struct {
		logger *logiface.Logger[*stumpy.Event]
		fields map[string]any
		err    error
	}
)

var _ Logger = Logiface{}

// NewLogiface constructs a Logiface writing newline-delimited JSON to w
// (os.Stderr if nil).
func NewLogiface(w io.Writer) Logiface {
	if w == nil {
		w = os.Stderr
	}
	return Logiface{logger: logiface.New[*stumpy.Event](stumpy.WithStumpy(stumpy.WithWriter(w)))}
}

func (x Logiface) WithField(key string, value any) Logger {
	fields := cloneFields(x.fields)
	fields[key] = value
	return Logiface{logger: x.logger, fields: fields, err: x.err}
}

func (x Logiface) WithFields(fields map[string]any) Logger {
	merged := cloneFields(x.fields)
	for k, v := range fields {
		merged[k] = v
	}
	return Logiface{logger: x.logger, fields: merged, err: x.err}
}

func (x Logiface) WithError(err error) Logger {
	return Logiface{logger: x.logger, fields: x.fields, err: err}
}

func cloneFields(fields map[string]any) map[string]any {
	cloned := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		cloned[k] = v
	}
	return cloned
}

func (x Logiface) Debug(args ...any) { x.log(x.logger.Debug(), args) }
func (x Logiface) Info(args ...any)  { x.log(x.logger.Info(), args) }
func (x Logiface) Warn(args ...any)  { x.log(x.logger.Warning(), args) }
func (x Logiface) Error(args ...any) { x.log(x.logger.Err(), args) }

func (x Logiface) log(b *logiface.Builder[*stumpy.Event], args []any) {
	if b == nil {
		return
	}
	for k, v := range x.fields {
		b = b.Field(k, v)
	}
	if x.err != nil {
		b = b.Err(x.err)
	}
	b.Log(fmt.Sprint(args...))
}
