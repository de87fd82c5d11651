package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/wufe/catears-dashboard/internal/auth"
	"github.com/wufe/catears-dashboard/internal/client"
	"github.com/wufe/catears-dashboard/internal/mirror"
	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/store"
	"github.com/wufe/catears-dashboard/internal/syncer"
)

var (
	flagConfig   string
	flagLogLevel string

	flagListen string

	flagServer  string
	flagNoLogin bool

	flagPreview previewOptions
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd := &cobra.Command{
		Use:   "catears",
		Short: "Cat ears dashboard - edit and publish the animatronic ears configuration",
		Long: `Cat ears dashboard edits the configuration the cat ears device polls for:
servo motion, LED ring patterns and speaker audio.

"serve" runs the API that stores the device document, "console" is the
terminal dashboard that edits it and keeps it in sync.`,
		SilenceUsage: true,
	}
	addGlobalFlags(rootCmd.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the state and session API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "address to listen on (overrides server.listen)")

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Edit the configuration in a terminal dashboard",
		Args:  cobra.NoArgs,
		RunE:  runConsole,
	}
	consoleCmd.Flags().StringVar(&flagServer, "server", "", "base URL of a running serve (overrides console.server_url)")
	consoleCmd.Flags().BoolVar(&flagNoLogin, "no-login", false, "start without asking for credentials")

	hashCmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the password hash to use as " + EnvPasswordHash,
		Args:  cobra.NoArgs,
		RunE:  runHashPassword,
	}

	previewCmd := &cobra.Command{
		Use:   "preview [file|-]",
		Short: "Print the canonical device document",
		Long: `Print the document the device would receive for a configuration file
("-" reads stdin), or for the default configuration. Light and chiptune
presets are applied on top.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPreview,
	}
	previewCmd.Flags().BoolVar(&flagPreview.useDefault, "default", false, "start from the default configuration")
	previewCmd.Flags().StringVar(&flagPreview.lights, "lights", "", "light preset for both ears ("+strings.Join(schema.LightPresetNames, ", ")+")")
	previewCmd.Flags().StringVar(&flagPreview.audio, "audio", "", "chiptune preset ("+strings.Join(schema.ChiptunePresetNames, ", ")+")")

	rootCmd.AddCommand(serveCmd, consoleCmd, hashCmd, previewCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&flagConfig, "config", "c", "", "configuration file (default: configuration.json or .yaml in the working directory)")
	fs.StringVar(&flagLogLevel, "log-level", "", "log level (overrides log_level)")
}

// loadConfiguration reads the configuration and applies the global flags.
func loadConfiguration() (Configuration, error) {
	configuration, err := LoadConfiguration(flagConfig, os.LookupEnv)
	if err != nil {
		return configuration, err
	}
	if flagLogLevel != "" {
		configuration.LogLevel = flagLogLevel
	}
	level, err := zerolog.ParseLevel(configuration.LogLevel)
	if err != nil {
		return configuration, fmt.Errorf("invalid log level %q: %w", configuration.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	configuration.Dump()
	return configuration, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	if flagListen != "" {
		configuration.Server.Listen = flagListen
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()
	return StartHTTPServer(ctx, configuration.Server, log.Logger)
}

func runConsole(cmd *cobra.Command, _ []string) error {
	configuration, err := loadConfiguration()
	if err != nil {
		return err
	}
	if flagServer != "" {
		configuration.Console.ServerURL = flagServer
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	conn, err := client.New(configuration.Console.ServerURL)
	if err != nil {
		return err
	}

	s := store.New()
	raw, err := conn.FetchState(ctx)
	switch {
	case errors.Is(err, client.ErrNotFound):
		log.Info().Msg("No configuration stored yet: starting from the default")
	case err != nil:
		log.Warn().Err(err).Msg("Could not fetch the stored configuration: starting from the default")
	default:
		if err := s.LoadState(raw); err != nil {
			log.Warn().Err(err).Msg("Stored configuration rejected: starting from the default")
		}
	}

	authorized := false
	if !flagNoLogin && term.IsTerminal(int(os.Stdin.Fd())) {
		username, password, err := promptCredentials(configuration.Console.Username)
		if err != nil {
			return err
		}
		if err := conn.Login(ctx, username, password); err != nil {
			log.Warn().Err(err).Msg("Login failed: edits stay local until you log in with L")
		} else {
			authorized = true
		}
	}

	// From here on logs go through the dashboard.
	tui := NewTUI()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: tui}).With().Timestamp().Logger()
	log.Logger = logger

	status := newSyncStatus()
	var hue *mirror.Hue
	if configuration.Hue.LightName != "" {
		hue, err = mirror.Connect(ctx, mirror.Config{
			BridgeIP:       configuration.Hue.BridgeIP,
			BridgeUsername: configuration.Hue.BridgeUsername,
			LightName:      configuration.Hue.LightName,
			Logger:         logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Hue mirror disabled")
			hue = nil
		}
	}

	ctrl, err := syncer.New(syncer.Config{
		Store:    s,
		Pusher:   conn,
		Logger:   logger,
		Debounce: configuration.Console.Debounce.Duration,
		OnState: func(state syncer.State) {
			status.Set(state)
			tui.UpdateTUI()
		},
		OnSynced: func(cfg schema.Configuration, _ syncer.Receipt) {
			if hue == nil {
				return
			}
			go func() {
				if err := hue.Mirror(ctx, cfg); err != nil {
					logger.Warn().Err(err).Msg("Hue mirror update failed")
					status.SetMirror("update failed")
				} else {
					status.SetMirror("mirrored " + schema.LightModeName(cfg.Lights.Left))
				}
				tui.UpdateTUI()
			}()
		},
	})
	if err != nil {
		return err
	}
	ctrl.Start(ctx)
	defer ctrl.Stop()
	ctrl.SetAuthorized(authorized)

	return tui.RunNewProgram(ctx, consoleDeps{
		store:    s,
		ctrl:     ctrl,
		conn:     conn,
		status:   status,
		username: configuration.Console.Username,
	})
}

// promptCredentials asks for a username (unless one is configured) and a
// password on the terminal.
func promptCredentials(username string) (string, string, error) {
	if username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", "", fmt.Errorf("reading password: %w", err)
	}
	return username, string(password), nil
}

func runHashPassword(cmd *cobra.Command, _ []string) error {
	password, err := readNewPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

// readNewPassword prompts twice on a terminal, or reads the first line of
// in when it is piped.
func readNewPassword(in io.Reader) (string, error) {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("password is empty")
		}
		return password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) == 0 {
		return "", errors.New("password is empty")
	}
	return string(first), nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return writePreview(cmd.OutOrStdout(), cmd.InOrStdin(), path, flagPreview)
}
