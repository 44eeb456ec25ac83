// ABOUTME: ledger-admin me and join commands
// ABOUTME: Shows the caller's identity and redeems invite tokens

package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show your principal, username and role",
	RunE:  runMe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check gateway health and show your identity",
	RunE:  runStatus,
}

var joinCmd = &cobra.Command{
	Use:   "join <token-or-link> <username>",
	Short: "Register by redeeming an invite",
	Args:  cobra.ExactArgs(2),
	RunE:  runJoin,
}

func init() {
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(statusCmd)
}

func runMe(cmd *cobra.Command, _ []string) error {
	c := newClientFromFlags()
	var me gateway.MeResponse
	if err := c.get(cmd.Context(), "/api/me", nil, &me); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(me)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("  Identity")
	cyan.Println("  --------")
	fmt.Printf("  Principal:  %s\n", me.Principal)
	if me.User == nil {
		color.Yellow("  Not registered. Ask an admin for an invite, then run `ledger-admin join`.")
		return nil
	}
	fmt.Printf("  Username:   %s\n", me.User.Username)
	fmt.Printf("  Role:       %s\n", me.User.Role)
	fmt.Printf("  Joined:     %s\n", formatDate(me.User.JoinedAt))
	if me.User.RevokedAt != nil {
		color.Red("  Access revoked %s", formatDate(*me.User.RevokedAt))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	c := newClientFromFlags()
	fmt.Printf("  Gateway:    %s ", flagURL)
	if err := c.ready(cmd.Context()); err != nil {
		color.Red("unreachable (%v)", err)
		return err
	}
	color.Green("ready")
	fmt.Println()
	return runMe(cmd, args)
}

// inviteToken accepts either a bare token or an invite link.
func inviteToken(arg string) string {
	if !strings.Contains(arg, "://") {
		return arg
	}
	u, err := url.Parse(arg)
	if err != nil {
		return arg
	}
	if t := u.Query().Get("token"); t != "" {
		return t
	}
	return arg
}

func runJoin(cmd *cobra.Command, args []string) error {
	c := newClientFromFlags()
	req := gateway.AcceptInviteRequest{Token: inviteToken(args[0]), Username: args[1]}
	var resp gateway.OutcomeResponse
	if err := c.send(cmd.Context(), "POST", "/api/invites/accept", req, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, "Registered as "+args[1])
}
