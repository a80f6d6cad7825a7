//go:build !windows && !plan9

package logging

import (
	"log/syslog"

	"github.com/juju/loggo/v2"
)

type syslogWriter struct {
	w *syslog.Writer
}

func newSyslogWriter(tag string) (*syslogWriter, error) {
	w, err := syslog.New(syslog.LOG_USER|syslog.LOG_DEBUG, tag)
	if err != nil {
		return nil, err
	}
	return &syslogWriter{w: w}, nil
}

func (s *syslogWriter) Write(entry loggo.Entry) {
	msg := PlainFormatter(entry)
	switch {
	case entry.Level >= loggo.CRITICAL:
		_ = s.w.Crit(msg)
	case entry.Level >= loggo.ERROR:
		_ = s.w.Err(msg)
	case entry.Level >= loggo.WARNING:
		_ = s.w.Warning(msg)
	case entry.Level >= loggo.INFO:
		_ = s.w.Info(msg)
	default:
		_ = s.w.Debug(msg)
	}
}

func (s *syslogWriter) Close() error {
	return s.w.Close()
}
