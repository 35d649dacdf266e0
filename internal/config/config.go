package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		GRPCPort string
		LogLevel string
	}
	Link struct {
		BaseDomain string
		IDLength   int
	}
	Transport struct {
		Mode string // loopback | agent
		Role string
	}
	Agent struct {
		TokenSecret   string
		TokenTTLMin   int
		TokenSkewSecs int
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("link.id_length", 8)

	v.SetDefault("transport.mode", "loopback")
	v.SetDefault("transport.role", "broadcaster")

	v.SetDefault("agent.token_ttl_min", 720)
	v.SetDefault("agent.token_skew_secs", 60)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.grpc_port", "GRPC_PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("link.base_domain", "LINK_BASE_DOMAIN")
	v.BindEnv("link.id_length", "LINK_ID_LENGTH")

	v.BindEnv("transport.mode", "TRANSPORT_MODE")
	v.BindEnv("transport.role", "TRANSPORT_ROLE")

	v.BindEnv("agent.token_secret", "AGENT_TOKEN_SECRET")
	v.BindEnv("agent.token_ttl_min", "AGENT_TOKEN_TTL_MIN")
	v.BindEnv("agent.token_skew_secs", "AGENT_TOKEN_SKEW_SECS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.GRPCPort = toString(v.Get("server.grpc_port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Link.BaseDomain = v.GetString("link.base_domain")
	c.Link.IDLength = v.GetInt("link.id_length")

	c.Transport.Mode = strings.ToLower(v.GetString("transport.mode"))
	c.Transport.Role = v.GetString("transport.role")

	c.Agent.TokenSecret = v.GetString("agent.token_secret")
	c.Agent.TokenTTLMin = v.GetInt("agent.token_ttl_min")
	c.Agent.TokenSkewSecs = v.GetInt("agent.token_skew_secs")

	log.Debug().
		Str("port", c.Server.Port).
		Str("base_domain", c.Link.BaseDomain).
		Str("transport", c.Transport.Mode).
		Msg("config loaded")
	return c
}

func toString(v any) string { return fmt.Sprint(v) }
