// Copyright 2025-2026 The dashmq Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import "github.com/spf13/viper"

// ===============================================================================
// Dashboard State Related Config

// ConfigMapReplace update to the dashboard config map replaces the map wholesale
const ConfigMapReplace = "replace"

// ConfigMapMerge update to the dashboard config map merges key-by-key into the map
const ConfigMapMerge = "merge"

// DashboardConfig defines dashboard state handling parameters
type DashboardConfig struct {
	// ConfigMapUpdateMode selects how updates to the dashboard's config map are
	// applied: "replace" swaps the whole map, "merge" upserts key-by-key
	ConfigMapUpdateMode string `mapstructure:"config_map_update_mode" json:"config_map_update_mode" validate:"required,oneof=replace merge"`
}

// ===============================================================================
// Subscriber Stream Related Config

// StreamConfig defines subscriber event stream parameters
type StreamConfig struct {
	// SubscriberBufferLen is the per-subscriber outbound event buffer length.
	// Delivery to a subscriber with a full buffer drops the event.
	SubscriberBufferLen int `mapstructure:"subscriber_buffer_len" json:"subscriber_buffer_len" validate:"gte=1"`
	// MaxConsecutiveDrops is the number of consecutive dropped events after
	// which a subscriber is forcibly unregistered
	MaxConsecutiveDrops int `mapstructure:"max_consecutive_drops" json:"max_consecutive_drops" validate:"gte=1"`
	// KeepAliveInterval is the interval between SSE keepalive messages in seconds
	KeepAliveInterval int `mapstructure:"keepalive_interval_sec" json:"keepalive_interval_sec" validate:"gte=1"`
}

// ===============================================================================
// NATS Update Mirror Related Config

// NATSReconnectConfig defines reconnect parameters
type NATSReconnectConfig struct {
	// MaxAttempts sets the max number of reconnect attempts (-1 is unlimited)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=-1"`
	// WaitInterval is the duration between reconnect attempts in seconds
	WaitInterval int `mapstructure:"wait_interval_sec" json:"wait_interval_sec" validate:"gte=1"`
}

// NATSConfig defines parameters for connecting to NATS server
type NATSConfig struct {
	// ServerURI is the NATS connection URI
	ServerURI string `mapstructure:"server_uri" json:"server_uri" validate:"required,uri"`
	// ConnectTimeout is the max duration for connecting to NATS server in seconds
	ConnectTimeout int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	// Reconnect defines reconnect parameters
	Reconnect NATSReconnectConfig `mapstructure:"reconnect" json:"reconnect" validate:"required,dive"`
}

// MirrorConfig defines the optional NATS update mirror parameters
type MirrorConfig struct {
	// Enabled controls whether broadcast events are also published to NATS
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// Subject is the NATS subject update events are published under
	Subject string `mapstructure:"subject" json:"subject" validate:"required"`
	// NATS are the NATS connection parameters
	NATS NATSConfig `mapstructure:"nats" json:"nats" validate:"required,dive"`
}

// ===============================================================================
// HTTP Related Config

// HTTPServerConfig defines the HTTP server parameters
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body in seconds. A zero or negative
	// value means there will be no timeout.
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the maximum duration before timing out
	// writes of the response in seconds. A zero or negative value
	// means there will be no timeout. Zero is expected here as the
	// subscriber event stream is long lived.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled in seconds. If
	// IdleTimeout is zero, the value of ReadTimeout is used. If
	// both are zero, there is no timeout.
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header containing the API request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
}

// HTTPEndpointConfig defines API endpoint config
type HTTPEndpointConfig struct {
	// PathPrefix is the end-point path prefix for the APIs
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
}

// HTTPConfig defines HTTP API / server parameters
type HTTPConfig struct {
	// Server defines HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging defines operation logging parameters
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config"`
	// Endpoints is the API endpoint config parameters
	Endpoints HTTPEndpointConfig `mapstructure:"endpoint_config" json:"endpoint_config" validate:"required,dive"`
}

// ===============================================================================
// Complete Config

// SystemConfig defines the complete system config for the dashmq server
type SystemConfig struct {
	// HTTP are the HTTP API / server config parameters
	HTTP HTTPConfig `mapstructure:"http" json:"http" validate:"required,dive"`
	// Dashboard are the dashboard state handling config parameters
	Dashboard DashboardConfig `mapstructure:"dashboard" json:"dashboard" validate:"required,dive"`
	// Stream are the subscriber event stream config parameters
	Stream StreamConfig `mapstructure:"stream" json:"stream" validate:"required,dive"`
	// Mirror are the optional NATS update mirror config parameters
	Mirror MirrorConfig `mapstructure:"mirror" json:"mirror" validate:"required,dive"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	// Default dashboard state settings
	viper.SetDefault("dashboard.config_map_update_mode", ConfigMapReplace)

	// Default subscriber stream settings
	viper.SetDefault("stream.subscriber_buffer_len", 32)
	viper.SetDefault("stream.max_consecutive_drops", 8)
	viper.SetDefault("stream.keepalive_interval_sec", 30)

	// Default NATS update mirror settings
	viper.SetDefault("mirror.enabled", false)
	viper.SetDefault("mirror.subject", "dashmq.dashboard.updates")
	viper.SetDefault("mirror.nats.server_uri", "nats://127.0.0.1:4222")
	viper.SetDefault("mirror.nats.connect_timeout_sec", 30)
	viper.SetDefault("mirror.nats.reconnect.max_attempts", -1)
	viper.SetDefault("mirror.nats.reconnect.wait_interval_sec", 15)

	// Default HTTP server settings
	viper.SetDefault("http.endpoint_config.path_prefix", "/")
	viper.SetDefault("http.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("http.server_config.listen_port", 3000)
	viper.SetDefault("http.server_config.read_timeout_sec", 60)
	viper.SetDefault("http.server_config.write_timeout_sec", 0)
	viper.SetDefault("http.server_config.idle_timeout_sec", 600)
	viper.SetDefault("http.logging_config.request_id_header", "Dashmq-Request-ID")
}
