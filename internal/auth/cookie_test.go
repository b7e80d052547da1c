package auth

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestCookieMinter_RoundTrip(t *testing.T) {
	t.Parallel()

	m := NewCookieMinter("test-cookie-secret")
	claim := Claim{Platform: "telegram", AppID: "mybot", XID: "777000"}

	cookies, err := m.Mint("mybot", claim, "user-1")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("got %d cookies, want jwt + expires pair", len(cookies))
	}

	jwtCookie, expCookie := cookies[0], cookies[1]
	if jwtCookie.Name != "tgsr_mybot" {
		t.Fatalf("cookie name = %q", jwtCookie.Name)
	}
	if expCookie.Name != "tgsr_mybot_expires" {
		t.Fatalf("expires cookie name = %q", expCookie.Name)
	}

	gotClaim, userID, err := m.Verify("mybot", jwtCookie.Value)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("userID = %q", userID)
	}
	if gotClaim.XID != "777000" || gotClaim.Platform != "telegram" {
		t.Fatalf("claim = %+v", gotClaim)
	}
}

func TestCookieMinter_Attributes(t *testing.T) {
	t.Parallel()

	m := NewCookieMinter("test-cookie-secret")
	cookies, err := m.Mint("mybot", Claim{Platform: "telegram", XID: "1"}, "u")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	jwtCookie := cookies[0]
	if !jwtCookie.HttpOnly || !jwtCookie.Secure || jwtCookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("jwt cookie attributes: %+v", jwtCookie)
	}

	// The companion must be readable by scripts and carry a unix
	// timestamp near now + TTL.
	expCookie := cookies[1]
	if expCookie.HttpOnly {
		t.Fatal("expires cookie must not be HttpOnly")
	}
	unix, err := strconv.ParseInt(expCookie.Value, 10, 64)
	if err != nil {
		t.Fatalf("expires value %q: %v", expCookie.Value, err)
	}
	want := time.Now().Add(CookieTTL).Unix()
	if unix < want-60 || unix > want+60 {
		t.Fatalf("expires %d not near %d", unix, want)
	}
}

func TestCookieMinter_Tampered(t *testing.T) {
	t.Parallel()

	m := NewCookieMinter("test-cookie-secret")
	cookies, err := m.Mint("mybot", Claim{Platform: "telegram", XID: "1"}, "u")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.Split(cookies[0].Value, ".")
	if len(parts) != 3 {
		t.Fatalf("not a JWT: %q", cookies[0].Value)
	}
	payload := []byte(parts[1])
	if payload[3] == 'A' {
		payload[3] = 'B'
	} else {
		payload[3] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, _, err := m.Verify("mybot", tampered); err == nil {
		t.Fatal("tampered cookie verified")
	}
}

func TestCookieMinter_WrongSecret(t *testing.T) {
	t.Parallel()

	cookies, err := NewCookieMinter("secret-a").Mint("mybot", Claim{XID: "1"}, "u")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, _, err := NewCookieMinter("secret-b").Verify("mybot", cookies[0].Value); err == nil {
		t.Fatal("cookie signed with another secret verified")
	}
}

func TestCookieMinter_WrongApp(t *testing.T) {
	t.Parallel()

	m := NewCookieMinter("test-cookie-secret")
	cookies, err := m.Mint("appa", Claim{XID: "1"}, "u")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, _, err := m.Verify("appb", cookies[0].Value); err == nil {
		t.Fatal("cookie for appa verified against appb")
	}
}

func TestCookieMinter_Expired(t *testing.T) {
	t.Parallel()

	m := NewCookieMinter("test-cookie-secret")
	m.now = func() time.Time { return time.Now().Add(-CookieTTL - time.Hour) }

	cookies, err := m.Mint("mybot", Claim{XID: "1"}, "u")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	fresh := NewCookieMinter("test-cookie-secret")
	if _, _, err := fresh.Verify("mybot", cookies[0].Value); err == nil {
		t.Fatal("expired cookie verified")
	}
}
