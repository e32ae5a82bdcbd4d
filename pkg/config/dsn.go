package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DatabaseURL is a parsed postgres:// connection URL
type DatabaseURL struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Options  map[string]string
}

// ParseDatabaseURL accepts postgres:// and postgresql:// URLs.
// The port defaults to 5432 and sslmode to disable.
func ParseDatabaseURL(raw string) (*DatabaseURL, error) {
	if raw == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid database URL scheme %q (expected postgres or postgresql)", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("database URL has no host")
	}

	out := &DatabaseURL{
		Host:     u.Hostname(),
		Port:     defaultDBPort,
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
		Options:  make(map[string]string),
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q in database URL", p)
		}
		out.Port = port
	}

	if u.User != nil {
		out.User = u.User.Username()
		out.Password, _ = u.User.Password()
	}

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			out.SSLMode = values[0]
			continue
		}
		out.Options[key] = values[0]
	}

	return out, nil
}

// DSN renders the URL as a libpq key=value string. Extra options follow in key order.
func (u *DatabaseURL) DSN() string {
	parts := []string{
		"host=" + quoteDSN(u.Host),
		"port=" + strconv.Itoa(u.Port),
		"user=" + quoteDSN(u.User),
		"password=" + quoteDSN(u.Password),
		"dbname=" + quoteDSN(u.Database),
		"sslmode=" + quoteDSN(u.SSLMode),
	}

	keys := make([]string, 0, len(u.Options))
	for k := range u.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quoteDSN(u.Options[k]))
	}

	return strings.Join(parts, " ")
}

// fill copies the URL into the fields of c that still hold their defaults
func (u *DatabaseURL) fill(c *DatabaseConfig) {
	if c.Host == "" || c.Host == "localhost" {
		c.Host = u.Host
	}
	if c.Port == 0 || c.Port == defaultDBPort {
		c.Port = u.Port
	}
	if c.User == "" || c.User == defaultDBUser {
		c.User = u.User
	}
	if c.Password == "" || c.Password == defaultDBPassword {
		c.Password = u.Password
	}
	if c.Database == "" || c.Database == defaultDBName {
		c.Database = u.Database
	}
	if c.SSLMode == "" || c.SSLMode == "disable" {
		c.SSLMode = u.SSLMode
	}
}

// quoteDSN quotes a libpq value when it is empty or holds spaces, quotes or backslashes
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
