package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation controls how a log file is rolled over. Size and age limits are
// handed to lumberjack; Daily additionally starts a new file at local
// midnight.
type Rotation struct {
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxAgeDays int  `yaml:"max_age_days"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
	Daily      bool `yaml:"daily"`
}

func DefaultRotation() Rotation {
	return Rotation{MaxSizeMB: 100, Daily: true}
}

// ParseLevel maps LOG_LEVEL values onto slog levels. trace has no slog
// equivalent and is treated as debug; anything unknown is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w in the given format ("text" or "json").
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Open builds a logger for file, or stderr when file is empty. The returned
// closer releases the file and must be called on shutdown.
func Open(file, level, format string, rot Rotation) (*slog.Logger, io.Closer, error) {
	if file == "" {
		return New(os.Stderr, level, format), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	lj := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    rot.MaxSizeMB,
		MaxAge:     rot.MaxAgeDays,
		MaxBackups: rot.MaxBackups,
		Compress:   rot.Compress,
		LocalTime:  true,
	}
	if !rot.Daily {
		return New(lj, level, format), lj, nil
	}
	w := startRotator(lj, untilMidnight)
	return New(w, level, format), w, nil
}

func untilMidnight(now time.Time) time.Duration {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
}

// rotator rolls the file over each time next elapses.
type rotator struct {
	*lumberjack.Logger
	stop chan struct{}
	done chan struct{}
}

func startRotator(lj *lumberjack.Logger, next func(time.Time) time.Duration) *rotator {
	r := &rotator{Logger: lj, stop: make(chan struct{}), done: make(chan struct{})}
	go r.loop(next)
	return r
}

func (r *rotator) loop(next func(time.Time) time.Duration) {
	defer close(r.done)
	for {
		timer := time.NewTimer(next(time.Now()))
		select {
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
			if err := r.Logger.Rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			}
		}
	}
}

func (r *rotator) Close() error {
	close(r.stop)
	<-r.done
	return r.Logger.Close()
}
