package wxcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"regadmin/internal/metrics"
	"regadmin/internal/registration"
)

// tokenSafetyMargin refreshes the access token five minutes before the
// provider-reported lifetime actually elapses.
const tokenSafetyMargin = 300 * time.Second

// AccessToken returns the cached bearer token when still valid,
// otherwise exchanges the app credentials for a fresh one. A non-zero
// provider errcode is fatal for the current request; callers must not
// retry the exchange.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiresAt) {
		return c.token, nil
	}

	q := url.Values{}
	q.Set("grant_type", "client_credential")
	q.Set("appid", c.appID)
	q.Set("secret", c.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cgi-bin/token?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Errcode     int    `json:"errcode"`
		Errmsg      string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.Errcode != 0 {
		return "", &registration.AuthError{Msg: fmt.Sprintf("access token exchange: %s (errcode %d)", out.Errmsg, out.Errcode)}
	}

	c.token = out.AccessToken
	c.tokenExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenSafetyMargin)
	metrics.TokenRefreshes.Inc()

	return c.token, nil
}
