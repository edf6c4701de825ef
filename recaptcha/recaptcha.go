package recaptcha

// recaptcha checks submitted reCAPTCHA responses against Google's
// siteverify endpoint. Each calling site brings its own secret, so the
// secret is an argument to Verify rather than part of the client.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is Google's siteverify endpoint.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// Verifier issues verification requests. The zero value uses the Google
// endpoint and http.DefaultClient; tests point Endpoint at a fake.
type Verifier struct {
	Endpoint   string
	HTTPClient *http.Client
}

// answer mirrors the relevant part of the siteverify response.
type answer struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks one reCAPTCHA response against a site secret. remoteIP
// is optional. A nil return means the response is valid.
func (v *Verifier) Verify(ctx context.Context, secret, response, remoteIP string) error {
	endpoint := v.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := v.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	form := url.Values{}
	form.Set("secret", secret)
	form.Set("response", response)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("can't reach the siteverify endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("siteverify returned status %d", res.StatusCode)
	}

	var a answer
	if err := json.NewDecoder(res.Body).Decode(&a); err != nil {
		return fmt.Errorf("can't decode the siteverify answer: %w", err)
	}

	if !a.Success {
		if len(a.ErrorCodes) > 0 {
			return fmt.Errorf("verification failed: %s", strings.Join(a.ErrorCodes, ", "))
		}
		return errors.New("verification failed")
	}
	return nil
}
