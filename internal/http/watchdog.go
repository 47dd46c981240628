package http

import (
	"errors"
	"io"
	"time"
)

// errStalled is the cancellation cause of a download that stopped receiving data.
var errStalled = errors.New("no data received within timeout")

// watchdog calls fire once d elapses without a call to kick.
// A zero or negative d disables it.
type watchdog struct {
	d     time.Duration
	timer *time.Timer
}

func newWatchdog(d time.Duration, fire func()) *watchdog {
	wd := &watchdog{d: d}
	if d > 0 {
		wd.timer = time.AfterFunc(d, fire)
	}
	return wd
}

func (wd *watchdog) kick() {
	if wd.timer != nil {
		wd.timer.Reset(wd.d)
	}
}

func (wd *watchdog) stop() {
	if wd.timer != nil {
		wd.timer.Stop()
	}
}

// watchedReader kicks the watchdog whenever bytes arrive.
type watchedReader struct {
	r  io.Reader
	wd *watchdog
}

func (w *watchedReader) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if n > 0 {
		w.wd.kick()
	}
	return n, err
}
