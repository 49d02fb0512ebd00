package logger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerOptions struct {
	level    slog.Leveler
	out      *asyncWriter
	format   logFormat
	keyOrder []string
}

// handler renders records as flat json or key=value lines: groups become
// dotted keys, durations become *_ms integers and secrets are masked.
type handler struct {
	opts   handlerOptions
	attrs  []slog.Attr
	prefix string
}

func newHandler(opts handlerOptions) *handler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if len(opts.keyOrder) == 0 {
		opts.keyOrder = defaultKeyOrder
	}
	return &handler{opts: opts}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return errNoWriter
	}
	asJSON := h.opts.format == formatJSON

	e := make(entry, 16)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(timeLayout)
	e["level"] = levelName(r.Level.String())
	if asJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		e.add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(h.prefix, a)
		return true
	})
	contextFields(ctx, e)

	if rid := e.str("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if asJSON {
				e.setDefault("rid_full", rid)
			}
			e["rid"] = short
		}
	}
	if e.str("event") == "" {
		e["event"] = r.Message
		if r.Message == "" {
			e["event"] = "unknown"
		}
	}
	e.setDefault("component", ComponentApp)
	e.normalize()

	var line []byte
	if asJSON {
		b, err := e.json(h.opts.keyOrder)
		if err != nil {
			return err
		}
		line = b
	} else {
		line = e.kv(h.opts.keyOrder)
	}
	return h.opts.out.Write(append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	if h.prefix != "" {
		attrs = []slog.Attr{{Key: h.prefix, Value: slog.GroupValue(attrs...)}}
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(append(clone.attrs, h.attrs...), attrs...)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// entry holds the fields of one line before encoding.
type entry map[string]any

func (e entry) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if isSecret(key) {
		if !v.Equal(slog.StringValue("")) {
			e[key] = masked
		}
		return
	}
	key, val, ok := convert(key, v)
	if ok {
		e[key] = val
	}
}

func (e entry) setDefault(key string, v any) {
	if s, isStr := v.(string); isStr && s == "" {
		return
	}
	if _, ok := e[key]; !ok {
		e[key] = v
	}
}

func (e entry) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// normalize applies the enum vocabularies and drops empty values.
func (e entry) normalize() {
	for field, allowed := range enumFields {
		raw, ok := e[field].(string)
		if !ok {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		if _, known := allowed[v]; known || (field == "status" && v != "") {
			e[field] = v
			continue
		}
		delete(e, field)
	}
	for k, v := range e {
		if s, ok := v.(string); ok && s == "" {
			delete(e, k)
		}
	}
}

func convert(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		// decimal.Decimal amounts land here and keep their exact text.
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// msKey gives duration fields the _ms suffix.
func msKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
