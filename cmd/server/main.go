package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.chrisrx.dev/x/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.chrisrx.dev/panel/config"
	"go.chrisrx.dev/panel/mqtt"
	"go.chrisrx.dev/panel/panel"
)

var opts struct {
	Addr     string
	Config   string
	LogFile  string
	Insecure bool
}

func main() {
	cmd := &cobra.Command{
		Use: "server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg, err := config.Load(opts.Config)
			if err != nil {
				return err
			}
			if opts.Insecure {
				cfg.InsecureSkipVerify = true
			}

			logger := log.New(log.WithFormat(log.JSONFormat))
			if opts.LogFile != "" {
				logger = slog.New(slog.NewJSONHandler(&lumberjack.Logger{
					Filename:   opts.LogFile,
					MaxSize:    10,
					MaxBackups: 3,
					MaxAge:     28,
				}, nil))
			}

			s := panel.NewSession(
				panel.WithLogger(logger),
				panel.WithDialer(mqtt.NewDialer(append(cfg.DialerOptions(), mqtt.WithDialerLogger(logger))...)),
			)
			defer s.Disconnect()
			go watch(ctx, s, logger)

			e := newServer(s, cfg.Params())
			go func() {
				<-ctx.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = e.Shutdown(ctx)
			}()

			logger.Info("listening", slog.String("addr", opts.Addr))
			if err := e.Start(opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Config, "config", "", "profile file (default $"+config.EnvVar+")")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "write rotated JSON logs to this file")
	cmd.Flags().BoolVar(&opts.Insecure, "insecure", false, "skip broker certificate verification")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// watch logs connection drops reported by the session.
func watch(ctx context.Context, s *panel.Session, logger *slog.Logger) {
	for {
		select {
		case ev := <-s.Events():
			logger.Warn("broker connection lost",
				slog.String("state", ev.State.String()),
				slog.Any("error", ev.Err),
			)
		case <-ctx.Done():
			return
		}
	}
}
