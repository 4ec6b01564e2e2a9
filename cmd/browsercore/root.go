// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bassosimone/browsercore/config"
	"github.com/bassosimone/browsercore/ipc"
	"github.com/bassosimone/browsercore/netfetch"
	"github.com/bassosimone/browsercore/obs"
	"github.com/bassosimone/browsercore/supervisor"
)

var (
	configPath string
	verbose    bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browsercore",
		Short: "Multi-process browser engine core",
		Long: `browsercore starts the host process: it loads the configuration
surface, opens the IPC fabric renderer/network/gpu/utility/extension/
storage/audio processes communicate over, and supervises those child
processes until it receives SIGINT/SIGTERM or a subsystem fails beyond
recovery.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := serve(cmd.Context(), cmd.PersistentFlags())
			if code != supervisor.ExitNormal {
				return exitCodeError{code}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML/JSON/TOML config file")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	cmd.PersistentFlags().String("security-level", "", "override security.level (low|medium|high|very-high|custom)")

	return cmd
}

// exitCodeError lets RunE carry a §6 [supervisor.ExitCode] back to main
// without cobra printing a generic error line for a clean shutdown.
type exitCodeError struct {
	code supervisor.ExitCode
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("browsercore: exit %d", int(e.code))
}

// run parses args, executes the root command, and returns the §6 exit
// code: 0 normal, 1 configuration error, 2 initialization failure, 3
// unrecoverable subsystem failure.
func run(args []string) supervisor.ExitCode {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		var ce exitCodeError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.Error())
			return ce.code
		}
		fmt.Fprintln(os.Stderr, err)
		return supervisor.ExitInitializationFailure
	}
	return supervisor.ExitNormal
}

// serve loads configuration, wires the IPC fabric and supervisor, and
// blocks until ctx is cancelled (SIGINT/SIGTERM) or a subsystem fails
// beyond its restart budget.
func serve(ctx context.Context, flags *pflag.FlagSet) supervisor.ExitCode {
	instanceID := supervisor.NewInstanceID()
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("instanceID", instanceID)

	v := viper.New()
	if err := v.BindPFlag("security.level", flags.Lookup("security-level")); err != nil {
		logger.Error("browsercore.config.bind_flags_failed", "error", err.Error())
		return supervisor.ExitConfigurationError
	}
	cfg, err := config.Load(v, configPath)
	if err != nil {
		logger.Error("browsercore.config.load_failed", "error", err.Error())
		return supervisor.ExitConfigurationError
	}

	fabricCfg := cfg.IPC.Build()
	fabricCfg.Logger = logger
	fabric := ipc.NewFabric(fabricCfg)

	optimizer, err := cfg.Network.Build()
	if err != nil {
		logger.Error("browsercore.network.build_failed", "error", err.Error())
		return supervisor.ExitConfigurationError
	}
	dnsResolver := cfg.DNS.Build()
	cacheEngine := cfg.Cache.Build()
	if _, err := cfg.Privacy.Build(); err != nil {
		logger.Error("browsercore.privacy.build_failed", "error", err.Error())
		return supervisor.ExitConfigurationError
	}

	fetchClient := netfetch.NewClient(dnsResolver, cacheEngine, optimizer.GetActiveHTTP3Settings())
	fetchClient.Logger = logger
	fetchClient.Config.ErrClassifier = obs.OSErrClassifier
	defer fetchClient.Close()

	fabric.RegisterHandler("network.fetch", newFetchHandler(fabric, fetchClient, logger))

	sup := supervisor.New(fabric, logger)

	logger.Info("browsercore.started", "securityLevel", string(cfg.Security.Level))

	<-ctx.Done()

	logger.Info("browsercore.shutdown.begin")
	sup.Shutdown(cfg.Supervisor.ShutdownGrace)
	logger.Info("browsercore.shutdown.complete")

	return supervisor.ExitNormal
}

// newFetchHandler returns the fabric-scoped "network.fetch" handler: it
// expects msg.Payload to carry the request URL as a string, runs it through
// client, and replies on msg.Origin with the [*netfetch.Result] (or a
// KindError message on failure), correlated to the original request.
func newFetchHandler(fabric *ipc.Fabric, client *netfetch.Client, logger *slog.Logger) ipc.Handler {
	return func(ctx context.Context, msg *ipc.Message) {
		rawURL, ok := msg.Payload.(string)
		if !ok {
			logger.Error("browsercore.network.fetch.bad_payload", "origin", msg.Origin)
			reply := ipc.NewMessage(ipc.KindError, msg.Route, "network.fetch: payload must be a URL string", time.Now())
			reply.CorrelationID = msg.ID
			sendFetchReply(ctx, fabric, msg, reply, logger)
			return
		}

		result, err := client.Fetch(ctx, rawURL)
		var reply *ipc.Message
		if err != nil {
			logger.Error("browsercore.network.fetch.failed", "url", rawURL, "error", err.Error())
			reply = ipc.NewMessage(ipc.KindError, msg.Route, err.Error(), time.Now())
		} else {
			reply = ipc.NewMessage(ipc.KindResponse, msg.Route, result, time.Now())
		}
		reply.CorrelationID = msg.ID
		sendFetchReply(ctx, fabric, msg, reply, logger)
	}
}

func sendFetchReply(ctx context.Context, fabric *ipc.Fabric, msg, reply *ipc.Message, logger *slog.Logger) {
	if msg.Origin == "" {
		logger.Debug("browsercore.network.fetch.no_origin", "route", msg.Route)
		return
	}
	if err := fabric.Send(ctx, msg.Origin, reply); err != nil {
		logger.Error("browsercore.network.fetch.reply_failed", "origin", msg.Origin, "error", err.Error())
	}
}
