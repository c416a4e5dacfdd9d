package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
// User/Password are the administrative login used by the bootstrap; the
// application role it creates comes from the secret source.
type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"gt=0"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	AdminDB  string `mapstructure:"admin_dbname"` // maintenance database used by the bootstrap
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns a keyword/value connection string for the given database.
// An empty dbName selects cfg.DBName. Values are quoted when needed.
func (cfg *PostgresConfig) DSN(dbName string) string {
	if dbName == "" {
		dbName = cfg.DBName
	}

	pairs := [][2]string{
		{"host", cfg.Host},
		{"port", strconv.Itoa(cfg.Port)},
		{"user", cfg.User},
		{"password", cfg.Password},
		{"dbname", dbName},
		{"sslmode", cfg.SSLMode},
	}
	if cfg.TimeZone != "" {
		pairs = append(pairs, [2]string{"TimeZone", cfg.TimeZone})
	}

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + "=" + quoteDSNValue(p[1])
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue single-quotes v when it is empty or holds a space, a quote
// or a backslash, escaping the latter two.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// URL returns the postgres:// form expected by golang-migrate.
func (cfg *PostgresConfig) URL(dbName string) string {
	if dbName == "" {
		dbName = cfg.DBName
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + dbName,
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WithCredentials returns a copy of cfg logging in as user.
func (cfg PostgresConfig) WithCredentials(user, password string) PostgresConfig {
	cfg.User = user
	cfg.Password = password
	return cfg
}
