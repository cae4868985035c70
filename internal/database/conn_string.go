package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/kalshi-guard/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password == "" {
		u.User = url.User(cfg.User)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()

	return u.String()
}
