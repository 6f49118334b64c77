package main

import (
    "os"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "ttstream/pkg/config"
    "ttstream/pkg/observability"
)

// Options holds the flags shared by every subcommand.
type Options struct {
    ConfigPath string
}

type app struct {
    cfg    *config.Config
    logger *zap.Logger
}

func newRootCmd() *cobra.Command {
    var opts Options
    a := &app{}
    root := &cobra.Command{
        Use:           "ttstream",
        Short:         "Bidirectional typed streams over tcp, quic, websocket and named pipes",
        SilenceUsage:  true,
        SilenceErrors: true,
        PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
            cfg, err := config.Load(opts.ConfigPath)
            if err != nil { return err }
            logger, err := observability.SetupLogger(cfg.Log)
            if err != nil { return err }
            a.cfg, a.logger = cfg, logger
            return nil
        },
        PersistentPostRun: func(_ *cobra.Command, _ []string) {
            if a.logger != nil { _ = a.logger.Sync() }
        },
    }
    root.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
    root.AddCommand(newServeCmd(a), newSendCmd(a))
    return root
}

func main() {
    if err := newRootCmd().Execute(); err != nil {
        _, _ = os.Stderr.WriteString("ttstream: " + err.Error() + "\n")
        os.Exit(1)
    }
}
