package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	timeout time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Control a walletd session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.server, "server", envOr("WALLETD_URL", "http://localhost:8080"), "walletd base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "request timeout")

	root.AddCommand(
		simpleCmd(opts, "session", "Show the current session", http.MethodGet, "/v1/session"),
		simpleCmd(opts, "connect", "Connect the wallet", http.MethodPost, "/v1/session/connect"),
		simpleCmd(opts, "disconnect", "Forget the session", http.MethodPost, "/v1/session/disconnect"),
		simpleCmd(opts, "refresh", "Refresh balances", http.MethodPost, "/v1/session/balances/refresh"),
		simpleCmd(opts, "token", "Show token metadata", http.MethodGet, "/v1/token"),
		simpleCmd(opts, "pending", "List in-flight transfers", http.MethodGet, "/v1/transfers/pending"),
		switchCmd(opts),
		transferCmd(opts),
		statusCmd(opts),
	)
	return root
}

func simpleCmd(opts *options, use, short, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, method, path, nil)
		},
	}
}

func switchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <chain-id>",
		Short: "Ask the wallet to switch network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || chainID <= 0 {
				return fmt.Errorf("invalid chain id %q", args[0])
			}
			return call(cmd, opts, http.MethodPost, "/v1/session/network", map[string]int64{"chain_id": chainID})
		},
	}
}

func transferCmd(opts *options) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "transfer <recipient> <amount>",
		Short: "Send tokens to recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/transfers"
			if wait {
				path += "?wait=true"
			}
			body := map[string]string{"recipient": args[0], "amount": args[1]}
			return call(cmd, opts, http.MethodPost, path, body)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for confirmation")
	return cmd
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "status <tx-hash>",
		Aliases: []string{"get"},
		Short:   "Show a transfer",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/transfers/"+url.PathEscape(args[0]), nil)
		},
	}
}

// call performs one request and prints the reply as indented JSON
func call(cmd *cobra.Command, opts *options, method, path string, body any) error {
	client := newAPIClient(opts.server, opts.timeout)

	var reply json.RawMessage
	if err := client.do(cmd.Context(), method, path, body, &reply); err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reply)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
