package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseSessionToken(t *testing.T) {
	t.Parallel()

	tok, err := IssueSessionToken("sess-1", "admin", "admin", "secret", time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken error: %v", err)
	}

	claims, err := ParseSessionToken(tok, "secret")
	if err != nil {
		t.Fatalf("ParseSessionToken error: %v", err)
	}
	if claims.ID != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", claims.ID)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Fatalf("claims = %+v, want admin/admin", claims)
	}
}

func TestParseSessionToken_WrongKey(t *testing.T) {
	t.Parallel()

	tok, err := IssueSessionToken("sess-1", "admin", "admin", "right", time.Hour)
	if err != nil {
		t.Fatalf("IssueSessionToken error: %v", err)
	}
	if _, err := ParseSessionToken(tok, "wrong"); err == nil {
		t.Fatal("expected error for wrong signing key")
	}
}

func TestParseSessionToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := IssueSessionToken("sess-1", "admin", "admin", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("IssueSessionToken error: %v", err)
	}
	if _, err := ParseSessionToken(tok, "secret"); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestAccountsVerify(t *testing.T) {
	t.Parallel()

	accounts := DefaultAccounts()

	if _, ok := accounts.Verify("admin", "admin123"); !ok {
		t.Fatal("stock admin credentials must verify")
	}
	if _, ok := accounts.Verify("admin", "wrong"); ok {
		t.Fatal("wrong password must not verify")
	}
	if _, ok := accounts.Verify("nobody", "admin123"); ok {
		t.Fatal("unknown user must not verify")
	}

	acct, ok := accounts.Verify("admin", "admin123")
	if !ok || acct.Role != "admin" {
		t.Fatalf("account = %+v, want admin role", acct)
	}
}
