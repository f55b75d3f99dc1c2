package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.chrisrx.dev/x/log"

	"go.chrisrx.dev/panel/config"
	"go.chrisrx.dev/panel/mqtt"
	"go.chrisrx.dev/panel/panel"
)

var opts struct {
	Config   string
	Broker   string
	Port     string
	WSPath   string
	Username string
	Password string
	Code     string
	Insecure bool
}

func main() {
	cmd := &cobra.Command{
		Use:           "panel",
		Short:         "Send configuration commands to remote panels",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Config, "config", "", "profile file (default $"+config.EnvVar+")")
	flags.StringVar(&opts.Broker, "broker", config.DefaultBroker, "broker host")
	flags.StringVarP(&opts.Port, "port", "p", fmt.Sprint(config.DefaultPort), "broker port")
	flags.StringVar(&opts.WSPath, "ws-path", config.DefaultWSPath, "websocket path")
	flags.StringVarP(&opts.Username, "username", "u", "", "broker username")
	flags.StringVar(&opts.Password, "password", "", "broker password")
	flags.StringVarP(&opts.Code, "code", "c", "", "panel access code (6 characters, case insensitive)")
	flags.BoolVar(&opts.Insecure, "insecure", false, "skip broker certificate verification")

	cmd.AddCommand(
		updateConfigCmd(),
		updatePasswordCmd(),
		messageCmd(),
	)

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func updateConfigCmd() *cobra.Command {
	var domain, prefix string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Point a panel at a new domain and topic prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *panel.Session) (*panel.Receipt, error) {
				return s.SendConfigUpdate(ctx, opts.Code, domain, prefix)
			})
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "new domain")
	cmd.Flags().StringVar(&prefix, "topic-prefix", "", "new topic prefix")
	return cmd
}

func updatePasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change a panel's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *panel.Session) (*panel.Receipt, error) {
				return s.SendPasswordUpdate(ctx, opts.Code, password)
			})
		},
	}
	cmd.Flags().StringVar(&password, "new-password", "", "new panel password")
	return cmd
}

func messageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message TEXT...",
		Short: "Show a message on a panel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s *panel.Session) (*panel.Receipt, error) {
				return s.SendMessage(ctx, opts.Code, strings.Join(args, " "))
			})
		},
	}
}

// run connects, sends one command and disconnects.
func run(cmd *cobra.Command, send func(context.Context, *panel.Session) (*panel.Receipt, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	params := cfg.Params()
	flags := cmd.Flags()
	if flags.Changed("broker") || params.Broker == "" {
		params.Broker = opts.Broker
	}
	if flags.Changed("port") {
		params.Port = opts.Port
	}
	if flags.Changed("ws-path") {
		params.WSPath = opts.WSPath
	}
	if flags.Changed("username") {
		params.Username = opts.Username
	}
	if flags.Changed("password") {
		params.Password = opts.Password
	}
	if opts.Insecure {
		cfg.InsecureSkipVerify = true
	}

	logger := log.New(log.WithFormat(log.JSONFormat))
	s := panel.NewSession(
		panel.WithLogger(logger),
		panel.WithDialer(mqtt.NewDialer(append(cfg.DialerOptions(), mqtt.WithDialerLogger(logger))...)),
	)
	if err := s.Connect(ctx, params); err != nil {
		return err
	}
	defer s.Disconnect()

	r, err := send(ctx, s)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published to %s:\n%s\n", r.Topic, panel.Indent(r.Payload))
	return nil
}
