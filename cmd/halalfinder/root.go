package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/sakif/halal-finder/internal/config"
	"github.com/sakif/halal-finder/internal/directory"
	"github.com/sakif/halal-finder/internal/storeclient"
)

// app is the state shared by every subcommand. PersistentPreRunE fills it
// in; commands that need the directory call openDirectory and close it.
type app struct {
	configFile string
	serverURL  string
	locale     string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
	client *storeclient.Client
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "halalfinder",
		Short:         "Find and review halal restaurants",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: search for config.yaml)")
	flags.StringVar(&a.serverURL, "server", "", "server base URL (overrides client.base_url)")
	flags.StringVar(&a.locale, "locale", "", "BCP 47 locale used to sort names, e.g. tr or en-GB")
	flags.BoolVar(&a.debug, "debug", false, "log HTTP requests to stderr")

	rootCmd.AddCommand(
		listCommand(a),
		showCommand(a),
		addCommand(a),
		reviewCommand(a),
		favoriteCommand(a),
		meCommand(a),
		signupCommand(a),
		loginCommand(a),
		logoutCommand(a),
	)
	return rootCmd
}

func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.Client.BaseURL = a.serverURL
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	token, err := readToken(cfg.Client.TokenFile)
	if err != nil {
		return err
	}
	a.client = storeclient.New(cfg.Client.BaseURL, storeclient.Options{
		Timeout: cfg.Client.Timeout,
		Token:   token,
		OnTokenChange: func(tok string) {
			if err := writeToken(cfg.Client.TokenFile, tok); err != nil {
				a.logger.Warn("saving token failed", slog.String("error", err.Error()))
			}
		},
		Logger: a.logger,
	})
	return nil
}

// openDirectory loads the restaurant list and resolves the saved session.
// The caller closes the returned directory.
func (a *app) openDirectory(cmd *cobra.Command) (*directory.Directory, error) {
	var tag language.Tag
	if a.locale != "" {
		var err error
		if tag, err = language.Parse(a.locale); err != nil {
			return nil, fmt.Errorf("invalid --locale %q: %w", a.locale, err)
		}
	}
	dir := directory.New(a.client, a.client, directory.Options{
		Locale:  tag,
		Timeout: a.cfg.Client.Timeout,
		Logger:  a.logger,
	})
	if err := dir.Open(cmd.Context()); err != nil {
		dir.Close()
		return nil, err
	}
	return dir, nil
}

// === TOKEN FILE ===

func readToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// writeToken saves token, or removes the file when token is empty.
func writeToken(path, token string) error {
	if token == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
