package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	app "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/app"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"

	// Blank imports register the supported database dialectors.
	_ "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm/mysql"
	_ "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm/postgres"
	_ "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm/sqlite"
)

const usage = `Usage: acwr-migrate [flags] <command> [command flags]

Commands:
  migrate   -subject <id> -configuration <id> [-batch-size <n>]
  status    -migration <id>
  analyze   -migration <id> -scope <SINGLE_BATCH|USER_MIGRATION|CONFIGURATION|FULL_SYSTEM>
  rollback  -migration <id> -scope <SINGLE_BATCH|USER_MIGRATION|CONFIGURATION|FULL_SYSTEM>
  validate  [-subject <id> | -configuration <id>] [-level <BASIC|STANDARD|STRICT>]

Flags:
  -config <path>   path to the YAML configuration file
  -env <path>      path to the .env file (default ".env")
`

func parseCommand(args []string) (app.Command, string, string, error) {
	global := flag.NewFlagSet("acwr-migrate", flag.ContinueOnError)
	configPath := global.String("config", "", "path to the YAML configuration file")
	envPath := global.String("env", ".env", "path to the .env file")
	if err := global.Parse(args); err != nil {
		return app.Command{}, "", "", err
	}
	rest := global.Args()
	if len(rest) == 0 {
		return app.Command{}, "", "", fmt.Errorf("no command given")
	}

	cmd := app.Command{Name: rest[0]}
	sub := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	switch cmd.Name {
	case "migrate":
		sub.StringVar(&cmd.SubjectID, "subject", "", "subject id")
		sub.StringVar(&cmd.ConfigurationID, "configuration", "", "configuration id")
		sub.IntVar(&cmd.BatchSize, "batch-size", 0, "records per batch (0 uses the configured size)")
	case "status":
		sub.StringVar(&cmd.MigrationID, "migration", "", "migration id")
	case "analyze", "rollback":
		sub.StringVar(&cmd.MigrationID, "migration", "", "migration id")
		sub.StringVar(&cmd.Scope, "scope", "", "rollback scope")
	case "validate":
		sub.StringVar(&cmd.SubjectID, "subject", "", "subject id")
		sub.StringVar(&cmd.ConfigurationID, "configuration", "", "configuration id")
		sub.StringVar(&cmd.Level, "level", "BASIC", "validation level")
	default:
		return app.Command{}, "", "", fmt.Errorf("unknown command %q", cmd.Name)
	}
	if err := sub.Parse(rest[1:]); err != nil {
		return app.Command{}, "", "", err
	}
	return cmd, *envPath, *configPath, nil
}

func main() {
	cmd, envPath, configPath, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g. Ctrl+C).
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop...", sig)
		cancel()
	}()

	if err := app.RunApplication(ctx, envPath, configPath, cmd); err != nil {
		logger.Errorf("acwr-migrate %s failed: %v", cmd.Name, err)
		os.Exit(1)
	}
}
