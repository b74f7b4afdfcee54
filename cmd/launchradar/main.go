package main

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Global state shared by the subcommands
	config *common.Config
	logger arbor.ILogger
)

const usage = `launchradar - Y Combinator company directory pipeline

Usage:
  launchradar <command> [flags]

Commands:
  scrape    Run the scrape-enrich-persist pipeline (once or periodically)
  serve     Start the HTTP API and websocket stream
  version   Print version information

Run 'launchradar <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "scrape":
		runScrape(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version", "-version", "--version", "-v":
		fmt.Printf("launchradar version %s\n", common.GetFullVersion())
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// loadConfig resolves configuration in priority order: defaults, config
// files, environment. Discovers launchradar.toml when no -config given.
func loadConfig(files configPaths) *common.Config {
	if len(files) == 0 {
		if _, err := os.Stat("launchradar.toml"); err == nil {
			files = append(files, "launchradar.toml")
		} else if _, err := os.Stat("deployments/local/launchradar.toml"); err == nil {
			files = append(files, "deployments/local/launchradar.toml")
		}
	}

	cfg, err := common.LoadFromFiles(files...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", files).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	return cfg
}
