// Package config defines the process's command-line/environment surface,
// built with kingpin, each flag bound to its environment variable through
// an explicit Envar.
package config

import (
	"github.com/alecthomas/kingpin/v2"

	"github.com/wafflehacks/external-postgres/internal/dbconn"
)

// Config is the fully-parsed startup configuration.
type Config struct {
	ManagementAddress string

	DatabaseDefaultDBName string
	DatabaseSocketDir     string
	DatabaseHost          string
	DatabasePort          string
	DatabaseUsername      string
	DatabasePassword      string
	DatabaseSSLMode       string

	KubeDatabaseHost    string
	KubeDatabasePort    string
	KubeDatabaseSSLMode string

	Kubeconfig  string
	KubeContext string

	LogLevel string
}

// Parse builds a kingpin application wired to every environment variable
// named in the external interface, parses args, and returns the result.
func Parse(args []string) (*Config, error) {
	app := kingpin.New("external-postgres", "Provisions and lifecycle-manages logical PostgreSQL databases.")

	cfg := &Config{}

	app.Flag("management-address", "Address the control-plane HTTP server listens on.").
		Default("127.0.0.1:8032").Envar("MANAGEMENT_ADDRESS").StringVar(&cfg.ManagementAddress)

	app.Flag("database-default-dbname", "Administrative default database name.").
		Default("postgres").Envar("DATABASE_DEFAULT_DBNAME").StringVar(&cfg.DatabaseDefaultDBName)
	app.Flag("database-socket-dir", "Unix socket directory used when no host is configured.").
		Envar("DATABASE_SOCKET_DIR").StringVar(&cfg.DatabaseSocketDir)
	app.Flag("database-host", "TCP host of the administrative connection; takes precedence over the socket directory.").
		Envar("DATABASE_HOST").StringVar(&cfg.DatabaseHost)
	app.Flag("database-port", "Administrative connection port.").
		Default("5432").Envar("DATABASE_PORT").StringVar(&cfg.DatabasePort)
	app.Flag("database-username", "Administrative connection username.").
		Required().Envar("DATABASE_USERNAME").StringVar(&cfg.DatabaseUsername)
	app.Flag("database-password", "Administrative connection password.").
		Envar("DATABASE_PASSWORD").StringVar(&cfg.DatabasePassword)
	app.Flag("database-ssl-mode", "Administrative connection sslmode.").
		Default("prefer").Envar("DATABASE_SSL_MODE").StringVar(&cfg.DatabaseSSLMode)

	app.Flag("kube-database-host", "Host written into replicated credential secrets, may differ from the admin host.").
		Envar("KUBE_DATABASE_HOST").StringVar(&cfg.KubeDatabaseHost)
	app.Flag("kube-database-port", "Port written into replicated credential secrets.").
		Default("5432").Envar("KUBE_DATABASE_PORT").StringVar(&cfg.KubeDatabasePort)
	app.Flag("kube-database-ssl-mode", "sslmode written into replicated credential secrets.").
		Default("prefer").Envar("KUBE_DATABASE_SSL_MODE").StringVar(&cfg.KubeDatabaseSSLMode)

	app.Flag("kubeconfig", "Path to a kubeconfig file; empty uses in-cluster config.").
		Envar("KUBECONFIG").StringVar(&cfg.Kubeconfig)
	app.Flag("kube-context", "kubeconfig context to use.").
		Envar("KUBE_CONTEXT").StringVar(&cfg.KubeContext)

	app.Flag("log-level", "Logging verbosity (debug, info, warn, error).").
		Default("info").Envar("LOG_LEVEL").StringVar(&cfg.LogLevel)

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConnectionTemplate builds the ConnectionManager's immutable connection
// template from the parsed administrative connection settings, applying
// the empty-DATABASE_HOST-falls-back-to-socket rule.
func (c *Config) ConnectionTemplate() dbconn.Template {
	return dbconn.Template{
		Host:            c.DatabaseHost,
		SocketDir:       c.DatabaseSocketDir,
		Port:            c.DatabasePort,
		Username:        c.DatabaseUsername,
		Password:        c.DatabasePassword,
		SSLMode:         dbconn.SSLMode(c.DatabaseSSLMode),
		DefaultDatabase: c.DatabaseDefaultDBName,
	}
}
