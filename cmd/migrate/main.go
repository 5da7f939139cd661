package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

// offline commands only touch the migrations directory.
var offline = map[string]func(dir, name string) (string, error){
	"create": func(dir, name string) (string, error) {
		if name == "" {
			return "", errors.New("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		return "created migration: " + path, err
	},
	"validate": func(dir, _ string) (string, error) {
		return "migration validation passed", migrate.ValidateDir(dir)
	},
}

// online commands need a database connection.
var online = map[string]func(ctx context.Context, r *migrate.Runner, version string) error{
	"up":     func(ctx context.Context, r *migrate.Runner, _ string) error { return r.Up(ctx) },
	"down":   func(ctx context.Context, r *migrate.Runner, _ string) error { return r.Down(ctx) },
	"status": func(ctx context.Context, r *migrate.Runner, _ string) error { return r.Status(ctx) },
	"version": func(ctx context.Context, r *migrate.Runner, version string) error {
		if version == "" {
			return errors.New("missing -version for version command")
		}
		return r.To(ctx, version)
	},
}

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (create)")
	version := flag.String("version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "config load failed", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	if run, ok := offline[*cmd]; ok {
		msg, err := run(*dir, *name)
		exitOn(ctx, logg, *cmd, err)
		fmt.Println(msg)
		return
	}

	run, ok := online[*cmd]
	if !ok {
		exitOn(ctx, logg, *cmd, fmt.Errorf("unknown -cmd %q", *cmd))
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql database", err)
	runner, err := migrate.NewRunner(sqlDB, *dir)
	exitOn(ctx, logg, "goose", err)

	logg.Info(ctx, "migrate ready")
	if err := run(ctx, runner, *version); err != nil {
		dbClient.Close()
		exitOn(ctx, logg, *cmd, err)
	}
}

func commandNames() []string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migrate "+step+" failed", err)
	os.Exit(1)
}
