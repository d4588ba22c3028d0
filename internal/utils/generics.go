package utils

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

const fallbackPort = 8080

func getPort(httpPort string) int {
	port, err := strconv.Atoi(httpPort)
	if err != nil {
		log.Warn().Err(err).Str("port", httpPort).Msgf("invalid port, defaulting to %d", fallbackPort)
		return fallbackPort
	}

	if port < 10 || port > 65535 {
		log.Warn().Int("port", port).Msgf("port out of range (10-65535), defaulting to %d", fallbackPort)
		return fallbackPort
	}

	return port
}

// GetListenAddress binds every interface in production and the default
// host otherwise.
func GetListenAddress(httpPort, env string) string {
	port := getPort(httpPort)

	if env == "production" {
		return fmt.Sprintf("0.0.0.0:%d", port)
	}
	return fmt.Sprintf(":%d", port)
}
