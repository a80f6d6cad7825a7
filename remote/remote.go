// Package remote ships archives to other hosts and starts their extraction
// there.
//
// By default both helpers report success whatever the outcome of the
// underlying command, which existing deployment scripts rely on. Failures
// are still logged. Set Client.Strict to get the errors back.
package remote

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/kballard/go-shellquote"

	"webup/deploy/domain"
)

// Client runs rsync and ssh.
type Client struct {
	runner domain.Runner
	logger loggo.Logger

	// Strict makes CopyToHost and TriggerRemoteExtract return the error of
	// the underlying command.
	Strict bool
	// Program is the deploy executable on the remote host.
	Program string
}

func NewClient(ectx domain.ExecutionContext) *Client {
	return &Client{
		runner:  ectx.Runner,
		logger:  ectx.Logger("remote"),
		Program: "deploy",
	}
}

// SplitDestination splits an rsync style destination ("host" or
// "host:/dir") into the ssh host and the remote directory.
func SplitDestination(dest string) (host, dir string) {
	if i := strings.IndexByte(dest, ':'); i >= 0 {
		return dest[:i], dest[i+1:]
	}
	return dest, ""
}

// RemotePath returns where CopyToHost puts local on dest.
func RemotePath(local, dest string) string {
	_, dir := SplitDestination(dest)
	base := path.Base(strings.TrimRight(local, "/"))
	if dir == "" {
		return base
	}
	return path.Join(dir, base)
}

// CopyToHost copies path to host with rsync. host may carry a remote
// directory ("host:/tmp"). Symbolic links are copied as the files they
// point to.
func (c *Client) CopyToHost(ctx context.Context, localPath, host string) error {
	if !strings.Contains(host, ":") {
		host += ":"
	}
	cmd := domain.NewCommand([]string{"rsync", "-avz", "--copy-links", strings.TrimRight(localPath, "/"), host})

	c.logger.Infof("copying '%s' to '%s'", localPath, host)
	return c.result(cmd, c.runner.Run(ctx, cmd, domain.Streams{Stdout: os.Stdout, Stderr: os.Stderr}))
}

// TriggerRemoteExtract runs "deploy -x dir" on host over ssh.
func (c *Client) TriggerRemoteExtract(ctx context.Context, dir, host string) error {
	sshHost, _ := SplitDestination(host)
	remoteCmd := shellquote.Join(c.Program, "-x", dir)
	cmd := domain.NewCommand([]string{"ssh", sshHost, remoteCmd})

	c.logger.Infof("running '%s'", cmd)
	return c.result(cmd, c.runner.Run(ctx, cmd, domain.Streams{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}))
}

func (c *Client) result(cmd domain.Command, err error) error {
	if err == nil {
		return nil
	}
	err = errors.Annotatef(err, "%s", cmd)
	if c.Strict {
		return err
	}
	c.logger.Warningf("ignoring failure: %v", err)
	return nil
}
