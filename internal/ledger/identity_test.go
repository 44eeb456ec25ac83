// ABOUTME: Tests for identity registry, access control, and invite redemption
// ABOUTME: Covers admin assertion, revocation rules, bootstrap, and every invite check

package ledger

import (
	"context"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

func (s *LedgerSuite) TestAssertAdmin() {
	s.NoError(s.svc.AssertAdmin(s.admin()))

	editor := s.register("ed-1", "editor")
	s.ErrorIs(s.svc.AssertAdmin(editor), ErrUnauthorized)
	s.ErrorIs(s.svc.AssertAdmin(as("nobody")), ErrNotRegistered)
	s.ErrorIs(s.svc.AssertAdmin(context.Background()), ErrUnauthenticated)
}

func (s *LedgerSuite) TestRevokeAccess_AdminTargetIsUnauthorized() {
	out, err := s.svc.BootstrapAdmin(context.Background(), "admin-2", "second")
	s.Require().NoError(err)
	s.Equal(AlreadyRegistered, out, "bootstrap only works on an empty registry")

	out, err = s.svc.RevokeAccess(s.admin(), adminPrincipal)
	s.Require().NoError(err)
	s.Equal(UnauthorizedActivity, out)
}

func (s *LedgerSuite) TestRevokeAccess_UnknownPrincipal() {
	out, err := s.svc.RevokeAccess(s.admin(), "ghost")
	s.Require().NoError(err)
	s.Equal(InvalidUser, out)
}

func (s *LedgerSuite) TestRevokeAccess_EditorCaller() {
	editor := s.register("ed-1", "editor")
	s.register("ed-2", "other")

	out, err := s.svc.RevokeAccess(editor, "ed-2")
	s.Require().NoError(err)
	s.Equal(UnauthorizedActivity, out)

	u, err := s.svc.LookupUser(context.Background(), "ed-2")
	s.Require().NoError(err)
	s.True(u.Active())
}

func (s *LedgerSuite) TestRevokeAccess_Success() {
	editor := s.register("ed-1", "editor")
	s.add(editor, "Food", 100)

	out, err := s.svc.RevokeAccess(s.admin(), "ed-1")
	s.Require().NoError(err)
	s.Equal(Success, out)

	_, err = s.svc.AddTransaction(editor, TransactionInput{Category: "Food", PaymentMethod: "Card"})
	s.ErrorIs(err, ErrAccessRevoked)

	// Revoking again is a no-op success.
	out, err = s.svc.RevokeAccess(s.admin(), "ed-1")
	s.Require().NoError(err)
	s.Equal(Success, out)

	users, err := s.svc.GetUsers(context.Background())
	s.Require().NoError(err)
	s.Len(users, 2)

	action := store.AuditRevokeAccess
	entries, err := s.svc.GetAuditLog(s.admin(), store.AuditFilter{Action: &action})
	s.Require().NoError(err)
	s.Len(entries, 1)
	s.Equal("ed-1", entries[0].TargetID)
}

func (s *LedgerSuite) TestGetAuditLog_AdminOnly() {
	editor := s.register("ed-1", "editor")
	_, err := s.svc.GetAuditLog(editor, store.AuditFilter{})
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *LedgerSuite) TestMe() {
	me, err := s.svc.Me(as("newcomer"))
	s.Require().NoError(err)
	s.Nil(me)

	ctx := s.register("newcomer", "fresh")
	me, err = s.svc.Me(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(me)
	s.Equal("fresh", me.Username)
	s.Equal(store.RoleEditor, me.Role)

	_, err = s.svc.Me(context.Background())
	s.ErrorIs(err, ErrUnauthenticated)
}

func (s *LedgerSuite) TestBootstrapAdmin_ShortUsername() {
	st, err := store.NewSQLiteStore(":memory:")
	s.Require().NoError(err)
	defer st.Close()

	svc := New(st, Options{Now: s.clock.Now})
	out, err := svc.BootstrapAdmin(context.Background(), "p", "ab")
	s.Require().NoError(err)
	s.Equal(ShortUsername, out)

	out, err = svc.BootstrapAdmin(context.Background(), "p", "abc")
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestAcceptInvite_SameTokenTwice() {
	token := s.invite()

	out, err := s.svc.AcceptInvite(as("p-1"), token, "alice")
	s.Require().NoError(err)
	s.Equal(Success, out)

	out, err = s.svc.AcceptInvite(as("p-2"), token, "bob")
	s.Require().NoError(err)
	s.Equal(AlreadyUsedToken, out)
}

func (s *LedgerSuite) TestAcceptInvite_ShortUsernameKeepsToken() {
	token := s.invite()

	out, err := s.svc.AcceptInvite(as("p-1"), token, "al")
	s.Require().NoError(err)
	s.Equal(ShortUsername, out)

	out, err = s.svc.AcceptInvite(as("p-1"), token, "alice")
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestAcceptInvite_UsernameCountsRunes() {
	token := s.invite()

	out, err := s.svc.AcceptInvite(as("p-1"), token, "éé")
	s.Require().NoError(err)
	s.Equal(ShortUsername, out)

	out, err = s.svc.AcceptInvite(as("p-1"), token, "ééé")
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestAcceptInvite_Expiry() {
	token := s.invite()
	s.clock.Advance(s.svc.Policy().InviteTTL)

	// Still valid at exactly the expiry instant.
	out, err := s.svc.AcceptInvite(as("p-1"), token, "alice")
	s.Require().NoError(err)
	s.Equal(Success, out)

	token = s.invite()
	s.clock.Advance(s.svc.Policy().InviteTTL + time.Nanosecond)
	out, err = s.svc.AcceptInvite(as("p-2"), token, "bob")
	s.Require().NoError(err)
	s.Equal(ExpiredToken, out)
}

func (s *LedgerSuite) TestAcceptInvite_CheckOrder() {
	out, err := s.svc.AcceptInvite(as("p-1"), "not-a-token", "x")
	s.Require().NoError(err)
	s.Equal(InvalidToken, out)

	// Used wins over expired and short username.
	token := s.invite()
	s.register("p-1", "alice")
	_, err = s.svc.AcceptInvite(as("p-2"), token, "bob")
	s.Require().NoError(err)
	s.clock.Advance(100 * time.Hour)
	out, err = s.svc.AcceptInvite(as("p-3"), token, "x")
	s.Require().NoError(err)
	s.Equal(AlreadyUsedToken, out)

	// Expired wins over short username.
	token = s.invite()
	s.clock.Advance(100 * time.Hour)
	out, err = s.svc.AcceptInvite(as("p-3"), token, "x")
	s.Require().NoError(err)
	s.Equal(ExpiredToken, out)
}

func (s *LedgerSuite) TestAcceptInvite_AlreadyRegistered() {
	s.register("p-1", "alice")

	token := s.invite()
	out, err := s.svc.AcceptInvite(as("p-1"), token, "another")
	s.Require().NoError(err)
	s.Equal(AlreadyRegistered, out)

	// Taken username, token still unused afterwards.
	out, err = s.svc.AcceptInvite(as("p-2"), token, "alice")
	s.Require().NoError(err)
	s.Equal(AlreadyRegistered, out)

	out, err = s.svc.AcceptInvite(as("p-2"), token, "bobby")
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestAcceptInvite_RevokedPrincipalStaysRegistered() {
	s.register("p-1", "alice")
	out, err := s.svc.RevokeAccess(s.admin(), "p-1")
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	out, err = s.svc.AcceptInvite(as("p-1"), s.invite(), "alice2")
	s.Require().NoError(err)
	s.Equal(AlreadyRegistered, out)
}

func (s *LedgerSuite) TestAcceptInvite_Unauthenticated() {
	_, err := s.svc.AcceptInvite(context.Background(), s.invite(), "alice")
	s.ErrorIs(err, ErrUnauthenticated)
}

func (s *LedgerSuite) TestGenerateInviteLink_AdminOnly() {
	editor := s.register("ed-1", "editor")
	_, err := s.svc.GenerateInviteLink(editor)
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *LedgerSuite) TestInvites_StoreDigestOnly() {
	res, err := s.svc.GenerateInviteLink(s.admin())
	s.Require().NoError(err)
	s.True(s.clock.Now().Add(72*time.Hour).Equal(res.ExpiresAt))

	invites, err := s.svc.ListInvites(s.admin())
	s.Require().NoError(err)
	s.Require().Len(invites, 1)
	s.Equal(TokenDigest(res.Token), invites[0].Digest)
	s.NotEqual(res.Token, invites[0].Digest)
	s.Equal(adminPrincipal, invites[0].IssuedBy)
}
