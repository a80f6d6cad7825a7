//go:build windows || plan9

package logging

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

type syslogWriter struct{}

func newSyslogWriter(string) (*syslogWriter, error) {
	return nil, errors.NotSupportedf("syslog")
}

func (*syslogWriter) Write(loggo.Entry) {}

func (*syslogWriter) Close() error { return nil }
