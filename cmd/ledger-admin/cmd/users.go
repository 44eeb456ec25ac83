// ABOUTME: ledger-admin administration commands
// ABOUTME: Users, access revocation, invites and the audit log

package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
)

var (
	flagAuditActor  string
	flagAuditAction string
	flagAuditSince  string
	flagAuditLimit  int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users (admin)",
	RunE:  runListUsers,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <principal>",
	Short: "Revoke a user's access (admin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevoke,
}

var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Generate a single-use invite link (admin)",
	RunE:  runCreateInvite,
}

var inviteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued invites (admin)",
	RunE:  runListInvites,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit log (admin)",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().StringVar(&flagAuditActor, "actor", "", "Filter by acting principal")
	auditCmd.Flags().StringVar(&flagAuditAction, "action", "", "Filter by action")
	auditCmd.Flags().StringVar(&flagAuditSince, "since", "", "Only entries after this date (YYYY-MM-DD)")
	auditCmd.Flags().IntVar(&flagAuditLimit, "limit", 50, "Maximum entries")

	usersCmd.AddCommand(revokeCmd)
	inviteCmd.AddCommand(inviteListCmd)
	rootCmd.AddCommand(usersCmd, inviteCmd, auditCmd)
}

func runListUsers(cmd *cobra.Command, _ []string) error {
	c := newClientFromFlags()
	var users []gateway.UserResponse
	if err := c.get(cmd.Context(), "/api/users", nil, &users); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(users)
	}

	red := color.New(color.FgRed)
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "  PRINCIPAL\tUSERNAME\tROLE\tJOINED\tSTATUS")
	fmt.Fprintln(w, "  ---------\t--------\t----\t------\t------")
	for _, u := range users {
		status := "active"
		if !u.Active {
			status = red.Sprint("revoked")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			truncate(u.Principal, 36), u.Username, u.Role, formatDate(u.JoinedAt), status)
	}
	return w.Flush()
}

func runRevoke(cmd *cobra.Command, args []string) error {
	c := newClientFromFlags()
	var resp gateway.OutcomeResponse
	path := "/api/users/" + url.PathEscape(args[0]) + "/revoke"
	if err := c.send(cmd.Context(), http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, "Revoked access for "+args[0])
}

func runCreateInvite(cmd *cobra.Command, _ []string) error {
	c := newClientFromFlags()
	var resp gateway.InviteResponse
	if err := c.send(cmd.Context(), http.MethodPost, "/api/invites", nil, &resp); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(resp)
	}
	if err := reportOutcome(resp.Result, "Invite created"); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Link:     %s\n", resp.Link)
	fmt.Printf("  Token:    %s\n", resp.Token)
	if resp.ExpiresAt != nil {
		fmt.Printf("  Expires:  %s\n", resp.ExpiresAt.Local().Format("Jan 02 15:04"))
	}
	fmt.Println()
	color.Yellow("  The token is shown once. Send it to the new user; they run:")
	fmt.Println("    ledger-admin join <link> <username>")
	return nil
}

func runListInvites(cmd *cobra.Command, _ []string) error {
	c := newClientFromFlags()
	var invites []gateway.InviteInfoResponse
	if err := c.get(cmd.Context(), "/api/invites", nil, &invites); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(invites)
	}
	if len(invites) == 0 {
		fmt.Println("  No invites.")
		return nil
	}

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "  DIGEST\tISSUED BY\tISSUED\tEXPIRES\tUSED BY")
	fmt.Fprintln(w, "  ------\t---------\t------\t-------\t-------")
	for _, inv := range invites {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			truncate(inv.Digest, 12), truncate(inv.IssuedBy, 12),
			formatDate(inv.IssuedAt), formatDate(inv.ExpiresAt), orDash(truncate(inv.UsedBy, 12)))
	}
	return w.Flush()
}

func runAudit(cmd *cobra.Command, _ []string) error {
	c := newClientFromFlags()

	q := url.Values{}
	if flagAuditActor != "" {
		q.Set("actor", flagAuditActor)
	}
	if flagAuditAction != "" {
		q.Set("action", flagAuditAction)
	}
	if flagAuditSince != "" {
		q.Set("since", flagAuditSince)
	}
	if flagAuditLimit > 0 {
		q.Set("limit", strconv.Itoa(flagAuditLimit))
	}

	var entries []gateway.AuditEntryResponse
	if err := c.get(cmd.Context(), "/api/admin/audit", q, &entries); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("  No audit entries.")
		return nil
	}

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "  TIME\tACTOR\tACTION\tTARGET")
	fmt.Fprintln(w, "  ----\t-----\t------\t------")
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s:%s\n",
			e.Timestamp.Local().Format("Jan 02 15:04"), truncate(e.Actor, 12), e.Action,
			e.TargetType, truncate(e.TargetID, 16))
	}
	return w.Flush()
}
