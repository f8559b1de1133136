package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// Field attaches one typed key/value pair to a log event.
type Field interface {
	AddTo(event *zerolog.Event)
}

type stringField struct {
	key   string
	value string
}

func (f stringField) AddTo(event *zerolog.Event) { event.Str(f.key, f.value) }

type intField struct {
	key   string
	value int
}

func (f intField) AddTo(event *zerolog.Event) { event.Int(f.key, f.value) }

type uint64Field struct {
	key   string
	value uint64
}

func (f uint64Field) AddTo(event *zerolog.Event) { event.Uint64(f.key, f.value) }

type float64Field struct {
	key   string
	value float64
}

func (f float64Field) AddTo(event *zerolog.Event) { event.Float64(f.key, f.value) }

type boolField struct {
	key   string
	value bool
}

func (f boolField) AddTo(event *zerolog.Event) { event.Bool(f.key, f.value) }

type errorField struct {
	value error
}

func (f errorField) AddTo(event *zerolog.Event) { event.Err(f.value) }

type durationField struct {
	key   string
	value time.Duration
}

func (f durationField) AddTo(event *zerolog.Event) { event.Dur(f.key, f.value) }

type timeField struct {
	key   string
	value time.Time
}

func (f timeField) AddTo(event *zerolog.Event) { event.Time(f.key, f.value) }

type anyField struct {
	key   string
	value interface{}
}

func (f anyField) AddTo(event *zerolog.Event) { event.Interface(f.key, f.value) }

func String(key, value string) Field             { return stringField{key, value} }
func Int(key string, value int) Field            { return intField{key, value} }
func Uint64(key string, value uint64) Field      { return uint64Field{key, value} }
func Float64(key string, value float64) Field    { return float64Field{key, value} }
func Bool(key string, value bool) Field          { return boolField{key, value} }
func Error(err error) Field                      { return errorField{err} }
func Duration(key string, v time.Duration) Field { return durationField{key, v} }
func Time(key string, v time.Time) Field         { return timeField{key, v} }
func Any(key string, value interface{}) Field    { return anyField{key, value} }
