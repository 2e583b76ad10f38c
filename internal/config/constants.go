package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// GatewaySettings is what the gateway publishes about its local query endpoint.
type GatewaySettings struct {
	Host string
	Port int
}

// URL returns the base URL of the query endpoint.
func (s GatewaySettings) URL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

func getGatewaySettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "api-gateway", "settings.json")
}

// LoadGatewaySettings reads the gateway's settings file, or returns nil when it is
// absent or does not name a port.
func LoadGatewaySettings() *GatewaySettings {
	path := getGatewaySettingsPath()
	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	return parseGatewaySettings(string(content))
}

func parseGatewaySettings(content string) *GatewaySettings {
	settings := &GatewaySettings{}

	// Match: "listen_port": 8787
	portRe := regexp.MustCompile(`"listen_port"\s*:\s*(\d+)`)
	if match := portRe.FindStringSubmatch(content); len(match) > 1 {
		_, _ = fmt.Sscanf(match[1], "%d", &settings.Port)
	}

	// Match: "listen_host": "127.0.0.1"
	hostRe := regexp.MustCompile(`"listen_host"\s*:\s*"([^"]*)"`)
	if match := hostRe.FindStringSubmatch(content); len(match) > 1 {
		settings.Host = match[1]
	}

	if settings.Port <= 0 || settings.Port > 65535 {
		return nil
	}

	return settings
}
