package main

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "strings"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "ttstream/pkg/client"
    "ttstream/pkg/core/netstack"
    "ttstream/pkg/protocol/codec"
    "ttstream/pkg/rpcerr"
)

func newSendCmd(a *app) *cobra.Command {
    var target, encoding string
    cmd := &cobra.Command{
        Use:   "send [message...]",
        Short: "Open a stream, send each message, half-close and print every reply",
        Long: `Open a stream to --target (or client.target) and send each argument as one
message. Arguments that parse as JSON are sent as that value, anything else
as a string. Replies are printed one per line as JSON until the peer closes.`,
        RunE: func(cmd *cobra.Command, args []string) error {
            if target != "" { a.cfg.Client.Target = target }
            if encoding != "" { a.cfg.Client.Encoding = encoding }
            return send(cmd.Context(), a, args, cmd.OutOrStdout())
        },
    }
    cmd.Flags().StringVar(&target, "target", "", "Endpoint URL, e.g. tcp://127.0.0.1:9090/echo")
    cmd.Flags().StringVar(&encoding, "encoding", "", "json or cbor")
    return cmd
}

func send(ctx context.Context, a *app, msgs []string, out io.Writer) error {
    cc, logger := a.cfg.Client, a.logger
    // messages are untyped values, which the proto codec cannot carry
    switch strings.ToLower(strings.TrimSpace(cc.Encoding)) {
    case "", "json", "cbor":
    default:
        return fmt.Errorf("encoding %q is not supported by send; use json or cbor", cc.Encoding)
    }
    c, err := codec.NewRegistry().ByName(cc.Encoding)
    if err != nil { return err }

    ac := client.NewAsyncClient(client.Options{
        Dialer: &netstack.Dialer{
            Attempts:       cc.DialAttempts,
            BackoffInitial: cc.BackoffInitial(),
            BackoffMax:     cc.BackoffMax(),
            BackoffJitter:  cc.BackoffJitter(),
            Logger:         logger,
        },
        Codec:       c,
        Logger:      logger,
        DialTimeout: cc.DialTimeout(),
        SendRate:    cc.SendRate,
        SendBurst:   cc.SendBurst,
    })
    s, err := client.Open[any, any](ctx, client.NewSyncClient(ac), cc.Target)
    if err != nil { return err }
    defer func() { _ = s.Close() }()
    logger.Debug("stream open", zap.String("target", cc.Target), zap.String("encoding", c.ContentType()))

    // io.EOF from the send side means the peer already closed; its reason
    // is read below.
    for _, m := range msgs {
        v := parseMessage(m)
        err := s.Send(&v)
        if rpcerr.IsEOF(err) { break }
        if err != nil { return fmt.Errorf("send: %w", err) }
    }
    if err := s.CloseSend(); err != nil && !rpcerr.IsEOF(err) { return fmt.Errorf("close send: %w", err) }

    for {
        res, err := s.Receive()
        if rpcerr.IsEOF(err) { return nil }
        if err != nil { return err }
        b, err := json.Marshal(*res)
        if err != nil { return err }
        if _, err := fmt.Fprintln(out, string(b)); err != nil { return err }
    }
}

func parseMessage(m string) any {
    var v any
    if err := json.Unmarshal([]byte(m), &v); err == nil { return v }
    return m
}
