package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// CookieTTL is how long a verification cookie stays trusted. Kept at
// Telegram's own init-data freshness window so a cookie never outlives
// the credential that minted it.
const CookieTTL = 24 * time.Hour

// cookieClaims is the JWT payload of a verification cookie.
type cookieClaims struct {
	Platform string `json:"platform"`
	AppID    string `json:"app_id"`
	XID      string `json:"xid"`
	UserID   string `json:"user_id"`
	jwt.RegisteredClaims
}

// CookieMinter signs and verifies per-app verification cookies. A valid
// cookie lets a returning browser skip init-data verification entirely.
type CookieMinter struct {
	secret []byte
	now    func() time.Time
}

// NewCookieMinter creates a CookieMinter with the given signing secret.
func NewCookieMinter(secret string) *CookieMinter {
	return &CookieMinter{secret: []byte(secret), now: time.Now}
}

// CookieName returns the verification cookie name for an app.
func CookieName(appID string) string {
	return "tgsr_" + appID
}

// ExpiresCookieName returns the companion cookie carrying the expiry
// timestamp, readable client-side without parsing the JWT.
func ExpiresCookieName(appID string) string {
	return CookieName(appID) + "_expires"
}

// Mint returns the cookie pair asserting the resolved identity.
func (m *CookieMinter) Mint(appID string, claim Claim, userID string) ([]*http.Cookie, error) {
	expires := m.now().Add(CookieTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cookieClaims{
		Platform: claim.Platform,
		AppID:    appID,
		XID:      claim.XID,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("signing verification cookie: %w", err)
	}
	return []*http.Cookie{
		{
			Name:     CookieName(appID),
			Value:    signed,
			Path:     "/",
			Expires:  expires,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		},
		{
			Name:     ExpiresCookieName(appID),
			Value:    strconv.FormatInt(expires.Unix(), 10),
			Path:     "/",
			Expires:  expires,
			Secure:   true,
			SameSite: http.SameSiteNoneMode,
		},
	}, nil
}

// Verify parses a cookie value and returns the claim and user id it
// asserts. Expired or tampered cookies fail.
func (m *CookieMinter) Verify(appID, value string) (Claim, string, error) {
	var claims cookieClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Claim{}, "", fmt.Errorf("verifying cookie: %w", err)
	}
	if claims.AppID != appID {
		return Claim{}, "", fmt.Errorf("cookie minted for app %q", claims.AppID)
	}
	return Claim{Platform: claims.Platform, AppID: claims.AppID, XID: claims.XID}, claims.UserID, nil
}
