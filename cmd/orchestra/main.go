package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hrygo/orchestra/internal/console"
	"github.com/hrygo/orchestra/internal/profile"
	"github.com/hrygo/orchestra/internal/version"
	"github.com/hrygo/orchestra/server"
	apiv1 "github.com/hrygo/orchestra/server/router/api/v1"
	"github.com/hrygo/orchestra/server/router/frontend"
	"github.com/hrygo/orchestra/spell"
)

var (
	rootCmd = &cobra.Command{
		Use:   "orchestra",
		Short: `Orchestrate life with your voice: turn spoken or typed spells into note and studio automations.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide their environment explicitly.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			setupLogger(viper.GetString("mode"), viper.GetString("log-level"))
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP automation API",
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile, err := newProfile()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := newApp(ctx, instanceProfile, os.Stdout, nil)
			if err != nil {
				return err
			}

			api := apiv1.NewAPIV1Service(instanceProfile, a.catalog, a.parser, a.dispatcher, a.agentEnabled())
			s, err := server.NewServer(ctx, instanceProfile, server.Deps{
				API:            api,
				Frontend:       frontend.NewFrontendService(instanceProfile, a.catalog),
				Backend:        a.dispatcher,
				MetricsHandler: a.metrics.Handler(),
			})
			if err != nil {
				slog.Error("failed to create server", "error", err)
				return err
			}

			c := make(chan os.Signal, 1)
			// SIGINT or SIGTERM triggers a graceful shutdown.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					slog.Error("failed to start server", "error", err)
					return err
				}
			}

			printGreetings(instanceProfile, a)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
			return nil
		},
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Type spells interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := newProfile()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
			defer stop()

			out := cmd.OutOrStdout()
			a, err := newApp(ctx, instanceProfile, out, consoleReporter(out))
			if err != nil {
				return err
			}

			useAgent := viper.GetBool("agent")
			c := console.New(cmd.InOrStdin(), out, a.dispatcher, console.Config{
				UseAgent:       useAgent,
				AgentAvailable: a.agentEnabled(),
				AskMode:        !cmd.Flags().Changed("agent"),
			})
			runErr := c.Run(ctx)

			if err := a.dispatcher.Shutdown(context.Background()); err != nil {
				slog.Warn("background dispatches did not finish", "error", err)
			}
			if errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}

	castCmd = &cobra.Command{
		Use:   "cast <spell>...",
		Short: "Cast one spell and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instanceProfile, err := newProfile()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
			defer stop()

			out := cmd.OutOrStdout()
			a, err := newApp(ctx, instanceProfile, out, consoleReporter(out))
			if err != nil {
				return err
			}

			useAgent, err := cmd.Flags().GetBool("agent")
			if err != nil {
				return err
			}
			if res := a.cast(ctx, strings.Join(args, " "), useAgent); !res.Success {
				cmd.SilenceUsage = true
				return errSpellFailed
			}
			return nil
		},
	}

	spellsCmd = &cobra.Command{
		Use:   "spells",
		Short: "Print the spell book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := spell.LoadFile(viper.GetString("spells"))
			if err != nil {
				return err
			}
			if viper.GetBool("markdown") {
				_, err := fmt.Fprint(cmd.OutOrStdout(), catalog.Markdown())
				return err
			}
			return catalog.Render(cmd.OutOrStdout())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.StringFull())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 8000)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of orchestra, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("spells", "", "path to a YAML spell table overriding the built-in one")
	rootCmd.PersistentFlags().Bool("agent-fallback", false, "send text no spell matches to the agent")
	rootCmd.PersistentFlags().Int("max-background", 4, "maximum concurrently running background commands")

	serveCmd.Flags().String("addr", "", "address of server")
	serveCmd.Flags().Int("port", 8000, "port of server")
	serveCmd.Flags().Float64("rate-limit", 10, "requests per second allowed per client")
	serveCmd.Flags().Int("rate-burst", 30, "request burst allowed per client")

	replCmd.Flags().Bool("agent", false, "route every command through the agent")
	castCmd.Flags().Bool("agent", false, "let the agent resolve and run the spell")

	spellsCmd.Flags().Bool("markdown", false, "print the spell book as a Markdown table")

	mustBind(rootCmd.PersistentFlags().Lookup("mode"), "mode")
	mustBind(rootCmd.PersistentFlags().Lookup("log-level"), "log-level")
	mustBind(rootCmd.PersistentFlags().Lookup("spells"), "spells")
	mustBind(rootCmd.PersistentFlags().Lookup("agent-fallback"), "agent-fallback")
	mustBind(rootCmd.PersistentFlags().Lookup("max-background"), "max-background")
	mustBind(serveCmd.Flags().Lookup("addr"), "addr")
	mustBind(serveCmd.Flags().Lookup("port"), "port")
	mustBind(serveCmd.Flags().Lookup("rate-limit"), "rate-limit")
	mustBind(serveCmd.Flags().Lookup("rate-burst"), "rate-burst")
	mustBind(replCmd.Flags().Lookup("agent"), "agent")
	mustBind(spellsCmd.Flags().Lookup("markdown"), "markdown")

	// ORCHESTRA_PORT, ORCHESTRA_SPELLS, ORCHESTRA_AGENT_FALLBACK, ...
	viper.SetEnvPrefix("orchestra")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(serveCmd, replCmd, castCmd, spellsCmd, versionCmd)
}

var errSpellFailed = errors.New("spell failed")

func mustBind(flag *pflag.Flag, key string) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func newProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:          viper.GetString("mode"),
		Addr:          viper.GetString("addr"),
		Port:          viper.GetInt("port"),
		SpellsFile:    viper.GetString("spells"),
		AgentFallback: viper.GetBool("agent-fallback"),
		MaxBackground: viper.GetInt("max-background"),
		RateLimit:     viper.GetFloat64("rate-limit"),
		RateBurst:     viper.GetInt("rate-burst"),
		Version:       version.String(),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

func setupLogger(mode, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if mode == "prod" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(profile *profile.Profile, a *app) {
	fmt.Printf("🎻 Orchestra %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}

	fmt.Printf("Mode: %s\n", profile.Mode)
	fmt.Printf("Spells: %d\n", a.catalog.Len())
	if a.agentEnabled() {
		fmt.Printf("Agent: %s (%s)\n", profile.LLMProvider, profile.LLMModel)
	} else {
		fmt.Println("Agent: disabled (set OPENAI_API_KEY or ORCHESTRA_LLM_API_KEY to enable)")
	}

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Access Orchestra at: http://localhost:%d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		fmt.Printf("Access Orchestra at: http://%s:%d\n", profile.Addr, profile.Port)
	}
	fmt.Println()
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
