package components

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
	"github.com/kballard/go-shellquote"

	"webup/deploy/domain"
)

const defaultVhostTemplate = `<VirtualHost *:80>
    ServerName {{ .server_name }}
    DocumentRoot {{ .document_root }}

    <Directory {{ .document_root }}>
        Options FollowSymLinks
        AllowOverride All
        Require all granted
    </Directory>

    ErrorLog ${APACHE_LOG_DIR}/{{ .project }}-error.log
    CustomLog ${APACHE_LOG_DIR}/{{ .project }}-access.log combined
</VirtualHost>
`

// Apache regenerates the virtual host of a project from its configuration.
// Nothing is archived for it.
//
// The section keys are conf_dir, server_name, document_root, template (a
// text/template file; every key of the section is available to it) and
// reload (default "apache2ctl graceful", empty to skip).
type Apache struct {
	runner domain.Runner
	logger loggo.Logger
}

func NewApache(ectx domain.ExecutionContext) *Apache {
	return &Apache{
		runner: ectx.Runner,
		logger: ectx.Logger("apache"),
	}
}

func (a *Apache) template(section domain.Section) (*template.Template, error) {
	text := defaultVhostTemplate
	if path := section.String("template", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithType(errors.Annotatef(err, "apache template"), domain.ConfigError)
		}
		text = string(data)
	}
	tmpl, err := template.New("vhost").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.WithType(errors.Annotatef(err, "apache template"), domain.ConfigError)
	}
	return tmpl, nil
}

// Restore writes <conf_dir>/<project>.conf and reloads the server.
func (a *Apache) Restore(ctx context.Context, section domain.Section) error {
	confDir, err := section.Required("conf_dir")
	if err != nil {
		return errors.Annotatef(err, "section apache")
	}
	project, err := section.Required("project")
	if err != nil {
		return errors.Annotatef(err, "section apache")
	}

	tmpl, err := a.template(section)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string(section)); err != nil {
		return errors.WithType(errors.Annotatef(err, "rendering the apache configuration"), domain.ConfigError)
	}

	if err := os.MkdirAll(confDir, 0755); err != nil {
		return errors.Trace(err)
	}
	target := filepath.Join(confDir, project+".conf")
	if err := utils.AtomicWriteFile(target, buf.Bytes(), 0644); err != nil {
		return errors.Annotatef(err, "writing %s", target)
	}
	a.logger.Infof("apache configuration written to '%s'", target)

	reload := section.String("reload", "apache2ctl graceful")
	if v, ok := section.Get("reload"); ok && strings.TrimSpace(v) == "" {
		reload = ""
	}
	if reload == "" {
		return nil
	}
	args, err := shellquote.Split(reload)
	if err != nil || len(args) == 0 {
		return errors.WithType(errors.Errorf("invalid reload command %q", reload), domain.ConfigError)
	}

	cmd := domain.NewCommand(args)
	a.logger.Infof("reloading apache: %s", cmd)
	var stderr strings.Builder
	if err := a.runner.Run(ctx, cmd, domain.Streams{Stdout: os.Stdout, Stderr: &stderr}); err != nil {
		return errors.Annotatef(err, "reloading apache: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}
