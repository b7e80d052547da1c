package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// WebAppUser is the user object embedded in Mini App init data.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// InitData is the verified content of a Mini App launch bundle.
type InitData struct {
	User       *WebAppUser
	AuthDate   time.Time
	StartParam string
	QueryID    string
	Values     url.Values
}

// VerifyInitData validates a raw Mini App init-data string for the given
// app and returns its parsed content. The signature check recomputes
// HMAC_SHA256 over the sorted, newline-joined k=v pairs (hash excluded)
// with the key HMAC_SHA256(key="WebAppData", message=botToken), and
// compares against the hash field in constant time.
//
// Unless requireFresh is false, auth_date must be present and no older
// than the app's configured window (24h by default).
func (v *Verifier) VerifyInitData(appID, raw string, requireFresh bool) (*InitData, error) {
	app, err := v.app(appID)
	if err != nil {
		return nil, err
	}

	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("credential: parsing init data: %w", err)
	}

	hash := vals.Get("hash")
	if hash == "" {
		return nil, ErrMissingHash
	}

	var authDate time.Time
	if rawDate := vals.Get("auth_date"); rawDate != "" {
		unix, err := strconv.ParseInt(rawDate, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("credential: parsing auth_date: %w", err)
		}
		authDate = time.Unix(unix, 0)
	}

	if requireFresh {
		if authDate.IsZero() {
			return nil, ErrMissingAuthDate
		}
		maxAge := app.InitDataMaxAge
		if maxAge <= 0 {
			maxAge = defaultInitDataMaxAge
		}
		if v.now().Sub(authDate) > maxAge {
			return nil, ErrStaleInitData
		}
	}

	if !hmac.Equal([]byte(computeInitDataHash(app.BotToken, vals)), []byte(hash)) {
		return nil, ErrBadSignature
	}

	data := &InitData{
		AuthDate:   authDate,
		StartParam: vals.Get("start_param"),
		QueryID:    vals.Get("query_id"),
		Values:     vals,
	}
	if rawUser := vals.Get("user"); rawUser != "" {
		var user WebAppUser
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			return nil, fmt.Errorf("credential: parsing init data user: %w", err)
		}
		data.User = &user
	}
	return data, nil
}

// PeekUserID extracts the embedded user id from a raw init-data string
// without verifying the signature. It exists so callers can cross-check
// a cached credential against the current Telegram context; it must
// never stand in for VerifyInitData.
func PeekUserID(raw string) (int64, bool) {
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return 0, false
	}
	rawUser := vals.Get("user")
	if rawUser == "" {
		return 0, false
	}
	var user WebAppUser
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID == 0 {
		return 0, false
	}
	return user.ID, true
}

// computeInitDataHash builds the data-check string and signs it.
// The field ordering (bytewise sort), the k=v newline joining, and the
// key-derivation argument order are load-bearing: any deviation breaks
// interoperability with Telegram's signer.
func computeInitDataHash(botToken string, vals url.Values) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+vals.Get(k))
	}
	dataCheck := strings.Join(pairs, "\n")

	keyMAC := hmac.New(sha256.New, []byte("WebAppData"))
	keyMAC.Write([]byte(botToken))
	secretKey := keyMAC.Sum(nil)

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(dataCheck))
	return hex.EncodeToString(mac.Sum(nil))
}
