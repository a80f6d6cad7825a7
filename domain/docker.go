package domain

// DockerContainerEnv is the environment a container was started with.
type DockerContainerEnv map[string]string

// DockerContainerConfig is the part of "docker inspect" the database
// component reads: the image, for the logs, and the environment, for the
// connection defaults.
type DockerContainerConfig struct {
	Image string
	Env   DockerContainerEnv
}
