package gateway

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/telegate-io/telegate/internal/account"
	"github.com/telegate-io/telegate/internal/auth"
	"github.com/telegate-io/telegate/internal/credential"
	"github.com/telegate-io/telegate/internal/security"
	"github.com/telegate-io/telegate/internal/session"
)

// authenticateRequest is the POST /users/authenticate body.
type authenticateRequest struct {
	AppID    string `json:"app_id"`
	Platform string `json:"platform"`
	InitData string `json:"init_data"`
}

// authenticateResponse reports the resolved identity.
type authenticateResponse struct {
	OK        bool   `json:"ok"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Created   bool   `json:"created,omitempty"`
}

// handleAuthenticate verifies a Mini App init-data submission and logs
// the browser in.
//
// A valid, fresh verification cookie short-circuits the whole flow: no
// signature recomputation, no resolver round trip. Otherwise the init
// data is verified and resolved, and the cookie pair is set so the next
// request can take the fast path. Verification failure clears any stale
// cookies so the client library stops trusting them.
func (g *Gateway) handleAuthenticate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.verifier == nil || g.resolver == nil {
			http.Error(w, "authentication not available", http.StatusServiceUnavailable)
			return
		}

		if g.rateLimiter != nil {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if err := g.rateLimiter.Allow(security.LimitAuth, host); err != nil {
				g.metrics.RecordAuth("rate_limited")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}

		var req authenticateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AppID == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Platform == "" {
			req.Platform = account.PlatformTelegram
		}

		if resp, ok := g.cookieFastPath(r, req.AppID, req.InitData); ok {
			g.metrics.RecordAuth("cookie")
			writeJSON(w, http.StatusOK, resp)
			return
		}

		data, err := g.verifier.VerifyInitData(req.AppID, req.InitData, true)
		if err != nil {
			g.metrics.RecordAuth("rejected")
			g.auditEvent(security.EventAuthFailure, req.AppID, r)
			g.clearCookies(w, req.AppID)
			status := http.StatusUnauthorized
			if errors.Is(err, credential.ErrUnknownApp) {
				status = http.StatusNotFound
			}
			http.Error(w, "verification failed", status)
			return
		}

		claim := auth.Claim{Platform: req.Platform, AppID: req.AppID}
		if data.User != nil {
			claim.XID = strconv.FormatInt(data.User.ID, 10)
			claim.Profile = account.Profile{
				FirstName: data.User.FirstName,
				LastName:  data.User.LastName,
				Username:  data.User.Username,
				PhotoURL:  data.User.PhotoURL,
				Language:  data.User.LanguageCode,
			}
		}

		result, err := g.resolver.Resolve(r.Context(), req.AppID, claim, data.StartParam)
		if err != nil {
			g.metrics.RecordAuth("rejected")
			g.auditEvent(security.EventAuthFailure, req.AppID, r)
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}
		if !result.Authenticated {
			g.metrics.RecordAuth("anonymous")
			writeJSON(w, http.StatusOK, authenticateResponse{OK: false})
			return
		}

		if g.cookies != nil {
			cookies, err := g.cookies.Mint(req.AppID, claim, result.UserID)
			if err != nil {
				g.logger.Warn("minting verification cookie failed", "app_id", req.AppID, "error", err)
			} else {
				for _, c := range cookies {
					http.SetCookie(w, c)
				}
			}
		}

		g.metrics.RecordAuth("verified")
		g.auditEvent(security.EventAuthSuccess, req.AppID, r)
		writeJSON(w, http.StatusOK, authenticateResponse{
			OK:        true,
			UserID:    result.UserID,
			SessionID: result.SessionID,
			Created:   result.Created,
		})
	}
}

// cookieFastPath accepts a previously minted verification cookie. The
// cookie must name the same Telegram user as the submitted init data:
// a browser can carry one user's cookie into another user's Mini App,
// and answering from the cookie would log the wrong person in. On a
// mismatch the full verification flow runs and re-mints the cookies.
func (g *Gateway) cookieFastPath(r *http.Request, appID, initData string) (authenticateResponse, bool) {
	if g.cookies == nil {
		return authenticateResponse{}, false
	}
	c, err := r.Cookie(auth.CookieName(appID))
	if err != nil {
		return authenticateResponse{}, false
	}
	claim, userID, err := g.cookies.Verify(appID, c.Value)
	if err != nil || userID == "" {
		return authenticateResponse{}, false
	}
	if xid, ok := credential.PeekUserID(initData); ok && strconv.FormatInt(xid, 10) != claim.XID {
		return authenticateResponse{}, false
	}
	return authenticateResponse{
		OK:        true,
		UserID:    userID,
		SessionID: session.DeterministicID(appID, claim.XID),
	}, true
}

func (g *Gateway) clearCookies(w http.ResponseWriter, appID string) {
	for _, name := range []string{auth.CookieName(appID), auth.ExpiresCookieName(appID)} {
		http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1})
	}
}
