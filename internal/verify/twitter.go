package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clawlink/clawlink/internal/apperr"
)

const (
	twitterAPIBase = "https://api.twitter.com/2"
	lookupTimeout  = 10 * time.Second
)

// TwitterVerifier checks the owner's recent tweets for the claim code via
// the Twitter v2 API.
type TwitterVerifier struct {
	bearerToken string
	baseURL     string
	client      *http.Client
}

// NewTwitterVerifier creates a verifier using the given bearer token.
func NewTwitterVerifier(bearerToken string) *TwitterVerifier {
	return &TwitterVerifier{
		bearerToken: bearerToken,
		baseURL:     twitterAPIBase,
		client:      &http.Client{Timeout: lookupTimeout},
	}
}

type twitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

type twitterTimeline struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Verify looks the handle up, fetches its recent tweets, and scans them
// for the verification code.
func (v *TwitterVerifier) Verify(ctx context.Context, handle, code string) (bool, string, error) {
	handle = strings.TrimPrefix(handle, "@")

	var user twitterUser
	if err := v.get(ctx, "/users/by/username/"+url.PathEscape(handle), &user); err != nil {
		return false, "", err
	}
	if user.Data.ID == "" {
		return false, "", nil
	}

	var timeline twitterTimeline
	path := fmt.Sprintf("/users/%s/tweets?max_results=10", user.Data.ID)
	if err := v.get(ctx, path, &timeline); err != nil {
		return false, "", err
	}
	for _, tweet := range timeline.Data {
		if strings.Contains(tweet.Text, code) {
			return true, user.Data.ID, nil
		}
	}
	return false, "", nil
}

func (v *TwitterVerifier) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.bearerToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ExternalUnavailable, "verification provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return apperr.Newf(apperr.ExternalUnavailable, "verification provider returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return apperr.Newf(apperr.Internal, "verification provider returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}
