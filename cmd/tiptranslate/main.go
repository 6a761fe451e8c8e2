// Package main provides the tiptranslate host: the coordinator serving page
// agents over websocket ports, and the popup translation form in the
// terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/tiptranslate/pkg/config"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	APIKey      string
	BaseURL     string
	Model       string
	Listen      string
	Broadcast   string
	LogLevel    string
	Headless    bool
	InitConfig  bool
	Correlate   bool
	ShowVersion bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("tiptranslate v%s\n", version)
		return
	}

	if cli.InitConfig {
		if err := initConfig(cli.ConfigFile); err != nil {
			log.Fatalf("Configuration error: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
	cancel()
}

// parseFlags parses command line flags. Flags left empty fall back to the
// config file.
func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (default ~/.tiptranslate/config.yaml)")
	flag.StringVar(&cli.APIKey, "api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	flag.StringVar(&cli.BaseURL, "base-url", "", "OpenAI API base URL (or set OPENAI_BASE_URL env var)")
	flag.StringVar(&cli.Model, "model", "", "LLM model to use")
	flag.StringVar(&cli.Listen, "listen", "", "Address to serve page agent ports on")
	flag.StringVar(&cli.Broadcast, "broadcast", "", "Broadcast topic URL (gocloud.dev/pubsub)")
	flag.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.BoolVar(&cli.Headless, "headless", false, "Serve page agents only, without the popup")
	flag.BoolVar(&cli.InitConfig, "init-config", false, "Write the default configuration file and exit")
	flag.BoolVar(&cli.Correlate, "correlate", false, "Popup keeps only the reply to its latest request")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tiptranslate - LLM translation for selected text\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tiptranslate [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY         OpenAI API key\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_BASE_URL        OpenAI API base URL (for compatible APIs)\n")
		fmt.Fprintf(os.Stderr, "  TIPTRANSLATE_CONFIG    Configuration file path\n")
		fmt.Fprintf(os.Stderr, "  TIPTRANSLATE_LOG_DIR   Log directory\n")
		fmt.Fprintf(os.Stderr, "  TIPTRANSLATE_MODEL, TIPTRANSLATE_LISTEN, TIPTRANSLATE_BROADCAST_URL, ...\n")
		fmt.Fprintf(os.Stderr, "                         Override the matching configuration file values\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tiptranslate                          # Popup plus page agent ports\n")
		fmt.Fprintf(os.Stderr, "  tiptranslate -headless -listen :7531  # Ports only\n")
		fmt.Fprintf(os.Stderr, "  tiptranslate -init-config\n")
	}

	flag.Parse()
	return cli
}

// apply overrides file values with the flags that were set.
func (c *CLIConfig) apply(cfg *config.Config) {
	if c.APIKey != "" {
		cfg.LLM.APIKey = c.APIKey
	}
	if c.BaseURL != "" {
		cfg.LLM.BaseURL = c.BaseURL
	}
	if c.Model != "" {
		cfg.LLM.Model = c.Model
	}
	if c.Listen != "" {
		cfg.Transport.Listen = c.Listen
	}
	if c.Broadcast != "" {
		cfg.Transport.BroadcastURL = c.Broadcast
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
}

func initConfig(path string) error {
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}
