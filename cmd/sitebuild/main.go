package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/version"
)

func main() {
	if _, err := config.LoadEnvFiles("."); err != nil {
		slog.Warn("Failed to load env files", "error", err)
	}

	var cli CLI
	kong.Parse(&cli,
		kong.Name("sitebuild"),
		kong.Description("Build and serve a static site's assets."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.Run(ctx, os.Stdout)
	stop()

	code := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err)
	cli.Close()
	os.Exit(code)
}
