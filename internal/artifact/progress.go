package artifact

import (
	"io"

	"github.com/rs/zerolog"
)

// LogProgress reports download progress through log at every 25% step, or
// every 16 MiB when the size is unknown.
func LogProgress(log zerolog.Logger) ProgressFunc {
	return func(name string, total int64) io.Writer {
		return &logWriter{log: log, name: name, total: total}
	}
}

type logWriter struct {
	log     zerolog.Logger
	name    string
	total   int64
	written int64
	next    int64
}

const unknownSizeStep = 16 << 20

func (w *logWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	step := int64(unknownSizeStep)
	if w.total > 0 {
		step = w.total / 4
		if step == 0 {
			step = w.total
		}
	}
	if w.next == 0 {
		w.next = step
	}
	for w.written >= w.next {
		ev := w.log.Info().Str("artifact", w.name).Int64("written", w.written)
		if w.total > 0 {
			ev = ev.Int64("total", w.total).Int64("percent", w.written*100/w.total)
		}
		ev.Msg("download progress")
		w.next += step
	}
	return len(p), nil
}
