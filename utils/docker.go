package utils

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"webup/deploy/domain"
)

type containerParsedConfig struct {
	Env   []string
	Image string
}

// GetContainerID returns the id of the running container of a compose service.
func GetContainerID(ctx context.Context, runner domain.Runner, service string) (string, error) {
	cmd := domain.NewComposeCommand([]string{"ps", "-q", service})
	containerID, err := domain.Output(ctx, runner, cmd)
	if err != nil {
		return "", errors.Annotatef(err, "unable to get the %q container id", service)
	}
	if containerID == "" {
		return "", errors.NotFoundf("running container for service %q", service)
	}
	// several replicas: the first one is as good as any
	if i := strings.IndexByte(containerID, '\n'); i >= 0 {
		containerID = containerID[:i]
	}

	return containerID, nil
}

// GetContainerConfig returns the image and environment of a container.
func GetContainerConfig(ctx context.Context, runner domain.Runner, containerID string) (domain.DockerContainerConfig, error) {
	cmd := domain.NewCommand([]string{"docker", "inspect", "--format", "{{json .Config}}", containerID})
	configJSON, err := domain.Output(ctx, runner, cmd)
	if err != nil {
		return domain.DockerContainerConfig{}, errors.Annotatef(err, "unable to get the config of container %s", containerID)
	}

	// parse the json
	var config containerParsedConfig
	if err := json.NewDecoder(strings.NewReader(configJSON)).Decode(&config); err != nil {
		return domain.DockerContainerConfig{}, errors.Annotatef(err, "unable to decode the config of container %s", containerID)
	}

	// parse env variables of the container
	env := domain.DockerContainerEnv{}
	for _, data := range config.Env {
		items := strings.SplitN(data, "=", 2)
		if len(items) == 2 {
			env[items[0]] = items[1]
		} else {
			env[items[0]] = ""
		}
	}

	return domain.DockerContainerConfig{
		Image: config.Image,
		Env:   env,
	}, nil
}
