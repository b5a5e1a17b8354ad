package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"comicshelf/internal/bootstrap"
	"comicshelf/internal/bootstrap/config"
	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/errs"
	"comicshelf/internal/usecase/paging"
)

func withApp(run func(cmd *cobra.Command, app *bootstrap.App, engine *paging.Engine) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		cfg, err := config.Load(ctx, cfgFile)
		if err != nil {
			logging.Error(ctx, "load config failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "load config")
		}
		// Everything built by fx logs through this context.
		ctx = logging.WithLogger(ctx, logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format))
		cmd.SetContext(ctx)

		var app *bootstrap.App
		var engine *paging.Engine
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Replace(cfg),
			fx.Populate(&app, &engine),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, app, engine); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
