// Package main provides a terminal page agent. It stands in for a web page:
// selections, clicks and translate presses are typed on stdin and the
// tooltip is drawn on stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/tiptranslate/pkg/config"
	"github.com/entrhq/tiptranslate/pkg/logging"
	"github.com/entrhq/tiptranslate/pkg/page"
	"github.com/entrhq/tiptranslate/pkg/transport/wsport"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile string
	ServerURL  string
	PageURL    string
	LogLevel   string
}

func main() {
	cli := parseFlags()

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cli, os.Stdin, os.Stdout); err != nil {
		cancel()
		log.Fatalf("Agent error: %v", err)
	}
	cancel()
}

func parseFlags() *CLIConfig {
	cli := &CLIConfig{}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (default ~/.tiptranslate/config.yaml)")
	flag.StringVar(&cli.ServerURL, "server", "", "Host URL to dial, e.g. http://127.0.0.1:7531")
	flag.StringVar(&cli.PageURL, "url", "about:blank", "URL of the simulated page, checked against page.allowed_urls")
	flag.StringVar(&cli.LogLevel, "log-level", "", "Log level: debug, info, warn or error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "tiptranslate-agent - terminal page agent\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tiptranslate-agent [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nCommands (stdin):\n")
		fmt.Fprintf(os.Stderr, "  select <x> <y> <text>   Select text at a position\n")
		fmt.Fprintf(os.Stderr, "  translate               Press the tooltip's translate control\n")
		fmt.Fprintf(os.Stderr, "  click <x> <y>           Press the mouse at a position\n")
		fmt.Fprintf(os.Stderr, "  close                   Press the tooltip's close control\n")
		fmt.Fprintf(os.Stderr, "  quit                    Leave the page\n")
	}

	flag.Parse()
	return cli
}

func run(ctx context.Context, cli *CLIConfig, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cli.ServerURL != "" {
		cfg.Transport.ServerURL = cli.ServerURL
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewWriterLogger("page", os.Stderr)
	logger.SetLevel(cfg.LogLevel())

	matcher, err := cfg.Page.Matcher()
	if err != nil {
		return err
	}

	doc := page.NewMemDocument()
	doc.OnChange(func(d *page.MemDocument) { draw(out, d) })

	session := page.NewSession(wsport.NewDialer(cfg.Transport.ServerURL), doc,
		page.WithLogger(logger),
		page.WithURL(cli.PageURL),
		page.WithMatcher(matcher),
		page.WithChannelOptions(page.WithReconnectPolicy(cfg.Reconnect.Policy())),
	)
	defer session.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		readCommands(in, out, session, doc)
		cancel()
	}()

	err = session.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readCommands feeds stdin into the session until EOF or quit.
func readCommands(in io.Reader, out io.Writer, session *page.Session, doc *page.MemDocument) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		switch cmd.kind {
		case cmdSelect:
			session.Select(cmd.text, cmd.x, cmd.y)
		case cmdTranslate:
			session.Translate()
		case cmdClick:
			doc.Dispatch(page.EventMouseDown, page.Pointer{X: cmd.x, Y: cmd.y})
		case cmdClose:
			session.CloseTooltip()
		case cmdQuit:
			return
		}
	}
}

func draw(out io.Writer, d *page.MemDocument) {
	tooltips := d.Tooltips()
	if len(tooltips) == 0 {
		fmt.Fprintln(out, "(no tooltip)")
		return
	}
	for _, t := range tooltips {
		fmt.Fprintf(out, "tooltip at (%d,%d)\n%s\n", t.X, t.Y, t.Render())
	}
}
