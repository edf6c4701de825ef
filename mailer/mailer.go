package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultEndpoint is the production gateway URL. It's a default, not a
// hardwired constant: set Config.Endpoint to target a staging gateway or
// a test server.
const DefaultEndpoint = "https://hisecon.homeinfo.de"

// Encoding selects how Send puts a submission on the wire. The gateway
// accepts both encodings; which one to use is an explicit configuration
// choice rather than something this package picks silently.
type Encoding int

const (
	// EncodingQuery appends the submission fields to the endpoint URL
	// and sends the message text as the raw POST body.
	EncodingQuery Encoding = iota
	// EncodingJSON sends the whole submission as a single JSON object
	// in the POST body, leaving the endpoint URL constant.
	EncodingJSON
)

// Doer issues a single HTTP request. *http.Client satisfies it. Timeout
// and transport policy belong to the Doer, so callers configure those on
// the http.Client they pass in, and tests can substitute a fake that
// never touches the network.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Config represents client options provided by the caller. Not meant to
// be used for sending without validation; see NewMailer.
type Config struct {
	// Endpoint is the gateway base URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Token is the opaque identifier of the server-side delivery
	// profile. The client never inspects it, only forwards it.
	Token string
	// Encoding picks the request encoding. Defaults to EncodingQuery.
	Encoding Encoding
	// HTTPClient performs the outbound request. Defaults to
	// http.DefaultClient.
	HTTPClient Doer
}

// Mailer submits emails to the gateway. Each Send call is fully
// independent; a Mailer holds no cross-request state and is safe for
// concurrent use.
type Mailer struct {
	endpoint string
	token    string
	encoding Encoding
	client   Doer
}

// NewMailer validates caller input and returns a Mailer ready to send.
// Returns an error on validation failure.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Token == "" {
		return nil, errors.New("must supply a config token")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("can't parse the endpoint URL: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Mailer{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		encoding: cfg.Encoding,
		client:   cfg.HTTPClient,
	}, nil
}

// Response is the transport response of a successful send: the gateway's
// status code and its body, verbatim.
type Response struct {
	StatusCode int
	Body       []byte
}

// GatewayError is a non-2xx gateway answer. The status and body are
// carried to the caller verbatim; this layer does not interpret gateway
// error bodies.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Send submits one email through the gateway. Exactly one POST request
// leaves this method per call and nothing is retried, so delivery is
// at-most-once. response is the reCAPTCHA response token the gateway
// verifies; extra headers are merged into the outbound request
// unmodified. A non-2xx gateway answer is returned as a *GatewayError.
func (m *Mailer) Send(ctx context.Context, response string, email Email, extra http.Header) (*Response, error) {
	if err := email.Check(); err != nil {
		return nil, err
	}

	var req *http.Request
	var err error
	switch m.encoding {
	case EncodingJSON:
		req, err = m.jsonRequest(ctx, response, email)
	default:
		req, err = m.queryRequest(ctx, response, email)
	}
	if err != nil {
		return nil, err
	}

	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't reach the gateway: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read the gateway response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &GatewayError{StatusCode: res.StatusCode, Body: body}
	}
	return &Response{StatusCode: res.StatusCode, Body: body}, nil
}

// SendText is the subject/body variant of Send for callers that have no
// Contact to format. The message is sent as plain text.
func (m *Mailer) SendText(ctx context.Context, response, subject, text string, recipients ...string) (*Response, error) {
	return m.Send(ctx, response, Email{
		Subject:     subject,
		Text:        text,
		Recipients:  recipients,
		ContentType: ContentTypePlain,
	}, nil)
}

// queryRequest encodes the submission into the endpoint URL's query
// string, one parameter per non-empty field, with the message text as
// the POST body.
func (m *Mailer) queryRequest(ctx context.Context, response string, email Email) (*http.Request, error) {
	u, err := url.Parse(m.endpoint)
	if err != nil {
		return nil, fmt.Errorf("can't parse the endpoint URL: %w", err)
	}

	q := u.Query()
	q.Set("config", m.token)
	if response != "" {
		q.Set("response", response)
	}
	if email.Subject != "" {
		q.Set("subject", email.Subject)
	}
	for _, r := range email.Recipients {
		if r != "" {
			q.Add("recipient", r)
		}
	}
	if email.HTML() {
		q.Set("html", "true")
	}
	if email.ReplyTo != "" {
		q.Set("reply_to", email.ReplyTo)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(email.Text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return req, nil
}

// jsonPayload is the wire shape of the JSON encoding. All keys are
// always present.
type jsonPayload struct {
	Config      string   `json:"config"`
	Response    string   `json:"response"`
	Subject     string   `json:"subject"`
	Text        string   `json:"text"`
	Recipients  []string `json:"recipients"`
	ContentType string   `json:"contentType"`
	ReplyTo     string   `json:"replyTo"`
}

// jsonRequest encodes the whole submission as the POST body, leaving the
// endpoint URL untouched.
func (m *Mailer) jsonRequest(ctx context.Context, response string, email Email) (*http.Request, error) {
	contentType := email.ContentType
	if contentType == "" {
		contentType = ContentTypePlain
	}
	recipients := email.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	b, err := json.Marshal(jsonPayload{
		Config:      m.token,
		Response:    response,
		Subject:     email.Subject,
		Text:        email.Text,
		Recipients:  recipients,
		ContentType: contentType,
		ReplyTo:     email.ReplyTo,
	})
	if err != nil {
		return nil, fmt.Errorf("can't encode the submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
