package config

import (
	"flag"
	"os"
	"time"

	"github.com/agentllm/agentllm/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string   listen address (e.g., ":8501")
//	-u string   public base URL
//	-d string   credential store DSN
//	-t int      shutdown grace period, seconds
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-d", "-t", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to listen on")
	fs.StringVar(&config.PublicURL, "u", config.PublicURL, "public base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	shutdown := fs.Int("t", int(config.ShutdownTimeout.Seconds()), "shutdown grace period (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ShutdownTimeout = time.Duration(*shutdown) * time.Second
}
