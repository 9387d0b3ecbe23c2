package clickhouse

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jitsucom/backfill-runbooks/jitsubase/utils"
)

type Protocol string

const (
	ProtocolNative Protocol = "clickhouse"
	ProtocolSecure Protocol = "clickhouse-secure"

	DefaultSecurePort = 9440
	DefaultUser       = "admin"
)

// Config dto for deserialized clickhouse connection config
type Config struct {
	Protocol   Protocol          `mapstructure:"protocol,omitempty" json:"protocol,omitempty"`
	Hosts      []string          `mapstructure:"hosts,omitempty" json:"hosts,omitempty"`
	Parameters map[string]string `mapstructure:"parameters,omitempty" json:"parameters,omitempty"`
	Username   string            `mapstructure:"username,omitempty" json:"username,omitempty"`
	Password   string            `mapstructure:"password,omitempty" json:"password,omitempty"`
	Database   string            `mapstructure:"database,omitempty" json:"database,omitempty"`
	// QueryTimeout is passed as max_execution_time setting
	QueryTimeout time.Duration `mapstructure:"queryTimeout,omitempty" json:"queryTimeout,omitempty"`
}

// NewConfig config for a single host. port 0 selects protocol default port.
func NewConfig(host string, port int, username, password string, secure bool) *Config {
	if port != 0 && !strings.Contains(host, ":") {
		host = fmt.Sprintf("%s:%d", host, port)
	}
	return &Config{
		Protocol: utils.Ternary(secure, ProtocolSecure, ProtocolNative),
		Hosts:    []string{host},
		Username: utils.NvlString(username, DefaultUser),
		Password: password,
		Database: "default",
	}
}

func (c *Config) Validate() error {
	if len(c.Hosts) == 0 || c.Hosts[0] == "" {
		return errors.New("clickhouse host is required")
	}
	switch c.Protocol {
	case "", ProtocolNative, ProtocolSecure:
	default:
		return fmt.Errorf("unsupported clickhouse protocol: %s", c.Protocol)
	}
	return nil
}

// ConnectionString builds clickhouse-go dsn:
// clickhouse://[user[:password]@][host1:port],[host2:port]/dbname[?param1=value1&paramN=valueN]
func (c *Config) ConnectionString() string {
	params := map[string]string{}
	for k, v := range c.Parameters {
		params[k] = v
	}
	if c.Protocol == ProtocolSecure {
		params["secure"] = "true"
		putIfAbsent(params, "skip_verify", "true")
	}
	putIfAbsent(params, "dial_timeout", "60s")
	putIfAbsent(params, "read_timeout", "5m")
	hostWithPorts := make([]string, len(c.Hosts))
	for i, host := range c.Hosts {
		switch {
		case strings.Contains(host, ":"):
			hostWithPorts[i] = host
		case c.Protocol == ProtocolSecure:
			hostWithPorts[i] = host + ":9440"
		default:
			hostWithPorts[i] = host + ":9000"
		}
	}
	connectionString := fmt.Sprintf("clickhouse://%s:%s@%s/%s",
		url.QueryEscape(c.Username), url.QueryEscape(c.Password), strings.Join(hostWithPorts, ","), c.Database)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	paramList := utils.ArrayMap(keys, func(k string) string { return k + "=" + params[k] })
	return connectionString + "?" + strings.Join(paramList, "&")
}

func putIfAbsent(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
