package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/debugctl/internal/control"
	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/rpc"
)

var (
	callTimeout time.Duration
	debuggeeID  string
	waitToken   string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register the configured debuggee and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *rpc.Client) error {
			id, err := register(ctx, client)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the active breakpoints of a debuggee as JSON",
	Long: `list prints the controller's list-active response. Without --debuggee-id the
configured debuggee is registered first to obtain its id.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, client *rpc.Client) error {
			id := debuggeeID
			if id == "" {
				var err error
				if id, err = register(ctx, client); err != nil {
					return err
				}
			}
			resp, err := client.ListActiveBreakpoints(ctx, &domain.ListActiveBreakpointsRequest{
				DebuggeeId:       id,
				WaitToken:        waitToken,
				SuccessOnTimeout: true,
			})
			if err != nil {
				return fmt.Errorf("list active breakpoints: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{registerCmd, listCmd} {
		cmd.Flags().DurationVar(&callTimeout, "timeout", time.Minute, "overall deadline of the command")
		rootCmd.AddCommand(cmd)
	}
	listCmd.Flags().StringVar(&debuggeeID, "debuggee-id", "", "debuggee id (registers the configured debuggee when empty)")
	listCmd.Flags().StringVar(&waitToken, "wait-token", "", "wait token of a previous list; blocks until the list changes")
}

func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *rpc.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := control.NewClient(ctx, appCfg.Controller)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	return fn(ctx, client)
}

func register(ctx context.Context, client *rpc.Client) (string, error) {
	resp, err := client.RegisterDebuggee(ctx, nil, rpc.WithDebuggee(control.DebuggeeFromConfig(appCfg.Agent)))
	if err != nil {
		return "", fmt.Errorf("register debuggee: %w", err)
	}
	return resp.DebuggeeID(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
