package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "server", "brokerctl":
		return serverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `# brokerctl configuration
addr = ":9999"

# HTTP status endpoint (/health, /ready, /sessions, /metrics); empty disables it.
status_addr = ""
status_cors_origins = []

# "engine" talks to the Docker Engine API, "cli" shells out to docker_binary.
backend = "engine"
# Empty uses DOCKER_HOST or the local daemon socket, e.g. "tcp://localhost:2375".
docker_host = ""
docker_api_version = ""
docker_binary = "docker"

drain_timeout = "5s"
read_timeout = "0s"
write_timeout = "15s"
max_line_bytes = 1048576
stop_timeout = "10s"
`
