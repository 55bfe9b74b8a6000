package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/plantbutler/internal"
	pkgconfig "github.com/starford/plantbutler/pkg/config"
)

var version = "dev"

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func alarms(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.PrintAlarms(ctx, os.Stdout, opts...)
}

func calendar(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	now := time.Now()
	year := int(cmd.Int("year"))
	if year == 0 {
		year = now.Year()
	}
	month := int(cmd.Int("month"))
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be 1-12, got %d", month)
	}
	return internal.PrintCalendar(ctx, os.Stdout, year, time.Month(month), opts...)
}

func keyringSet(_ context.Context, cmd *cli.Command) error {
	value := cmd.Args().First()
	if value == "" {
		return fmt.Errorf("usage: plantbutler keyring set <api-key>")
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.StoreWeatherKey(os.Stdout, cmd.String("user"), value, opts...)
}

func keyringDelete(_ context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ForgetWeatherKey(os.Stdout, cmd.String("user"), opts...)
}

func resetPrompts(_ context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	return internal.ResetPrompts(os.Stdout, opts...)
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "user",
		Usage: "Keyring entry (default: weather.keyring_user)",
	}
}

func main() {

	cmd := &cli.Command{
		Name:    "plantbutler",
		Usage:   "Plant care companion: photo diary calendar, task reminders and an assistant chat",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, event stream, reminders and photo inbox (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: runMCP,
			},
			{
				Name:   "alarms",
				Usage:  "List armed task reminders",
				Action: alarms,
			},
			{
				Name:   "calendar",
				Usage:  "Print a month of the diary calendar",
				Action: calendar,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "year", Aliases: []string{"y"}, Usage: "Year (default: current)"},
					&cli.IntFlag{Name: "month", Aliases: []string{"m"}, Usage: "Month 1-12 (default: current)"},
				},
			},
			{
				Name:  "keyring",
				Usage: "Manage the weather API key in the OS keyring",
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "Store the weather API key",
						ArgsUsage: "<api-key>",
						Flags:     []cli.Flag{userFlag()},
						Action:    keyringSet,
					},
					{
						Name:   "delete",
						Usage:  "Remove the stored weather API key",
						Flags:  []cli.Flag{userFlag()},
						Action: keyringDelete,
					},
				},
			},
			{
				Name:   "reset-prompts",
				Usage:  "Show one-time prompts again",
				Action: resetPrompts,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
