package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest records what the fake gateway saw.
type capturedRequest struct {
	query  url.Values
	header http.Header
	body   []byte
}

// newFakeGateway returns a test server answering with the given status
// and body, plus a pointer that holds the last request it captured.
func newFakeGateway(t *testing.T, status int, answer string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	cr := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("fake gateway can't read the request body: %v", err)
		}
		cr.query = r.URL.Query()
		cr.header = r.Header.Clone()
		cr.body = b
		w.WriteHeader(status)
		w.Write([]byte(answer))
	}))
	t.Cleanup(srv.Close)
	return srv, cr
}

func TestNewMailer(t *testing.T) {
	_, err := NewMailer(Config{})
	require.Error(t, err, "a mailer without a config token must not validate")

	m, err := NewMailer(Config{Token: "mysite"})
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, m.endpoint)
}

func TestSendQueryEncoding(t *testing.T) {
	srv, cr := newFakeGateway(t, http.StatusOK, "Emails sent.")

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		Encoding:   EncodingQuery,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	email := Email{
		Subject:     "Objekt 42",
		Text:        "<h1>Bitte um Rückruf</h1>",
		Recipients:  []string{"a@example.com", "b@example.com"},
		ContentType: ContentTypeHTML,
		ReplyTo:     "max@example.com",
	}
	res, err := m.Send(context.Background(), "captcha-token", email, http.Header{
		"X-Requested-With": []string{"hisecon-test"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Emails sent.", string(res.Body))

	assert.Equal(t, "mysite", cr.query.Get("config"))
	assert.Equal(t, "captcha-token", cr.query.Get("response"))
	assert.Equal(t, "Objekt 42", cr.query.Get("subject"))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cr.query["recipient"])
	assert.Equal(t, "true", cr.query.Get("html"))
	assert.Equal(t, "max@example.com", cr.query.Get("reply_to"))
	assert.Equal(t, "<h1>Bitte um Rückruf</h1>", string(cr.body))
	assert.Equal(t, "hisecon-test", cr.header.Get("X-Requested-With"))
}

// Optional parameters must only show up in the URL when their inputs are
// non-empty, while config is always present.
func TestSendQueryEncodingOmitsEmptyFields(t *testing.T) {
	srv, cr := newFakeGateway(t, http.StatusOK, "ok")

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = m.Send(context.Background(), "", Email{Text: "Hallo"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "mysite", cr.query.Get("config"))
	for _, param := range []string{"response", "subject", "recipient", "html", "reply_to"} {
		_, ok := cr.query[param]
		assert.Falsef(t, ok, "the %q parameter must be absent for empty input", param)
	}
}

func TestSendJSONEncoding(t *testing.T) {
	srv, cr := newFakeGateway(t, http.StatusOK, "Emails sent.")

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		Encoding:   EncodingJSON,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	email := Email{
		Subject:    "Objekt 42",
		Text:       "Bitte um Rückruf",
		Recipients: []string{"a@example.com"},
		ReplyTo:    "max@example.com",
	}
	_, err = m.Send(context.Background(), "captcha-token", email, nil)
	require.NoError(t, err)

	// The URL stays constant in JSON mode.
	assert.Empty(t, cr.query)
	assert.Equal(t, "application/json", cr.header.Get("Content-Type"))

	// The body must round-trip to exactly the gateway's field set.
	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(cr.body, &keys))
	expectedKeys := []string{"config", "response", "subject", "text", "recipients", "contentType", "replyTo"}
	assert.Len(t, keys, len(expectedKeys))
	for _, k := range expectedKeys {
		assert.Containsf(t, keys, k, "the JSON body is missing the %q key", k)
	}

	var payload jsonPayload
	require.NoError(t, json.Unmarshal(cr.body, &payload))
	assert.Equal(t, jsonPayload{
		Config:      "mysite",
		Response:    "captcha-token",
		Subject:     "Objekt 42",
		Text:        "Bitte um Rückruf",
		Recipients:  []string{"a@example.com"},
		ContentType: ContentTypePlain,
		ReplyTo:     "max@example.com",
	}, payload)
}

func TestSendEmptyBody(t *testing.T) {
	srv, cr := newFakeGateway(t, http.StatusOK, "ok")

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = m.Send(context.Background(), "captcha-token", Email{Subject: "no body"}, nil)
	require.Error(t, err, "an empty body must fail before any network call")
	assert.Nil(t, cr.body, "no request may reach the gateway for an empty body")
}

func TestSendGatewayError(t *testing.T) {
	srv, _ := newFakeGateway(t, http.StatusBadRequest, `{"code":400,"error":"No such configuration: \"mysite\"."}`)

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	res, err := m.Send(context.Background(), "captcha-token", Email{Text: "Hallo"}, nil)
	assert.Nil(t, res)

	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusBadRequest, ge.StatusCode)
	assert.Contains(t, string(ge.Body), "No such configuration")
}

// failingDoer simulates a transport failure without touching the
// network.
type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestSendTransportFailure(t *testing.T) {
	m, err := NewMailer(Config{Token: "mysite", HTTPClient: failingDoer{}})
	require.NoError(t, err)

	res, err := m.Send(context.Background(), "captcha-token", Email{Text: "Hallo"}, nil)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't reach the gateway")
}

func TestSendText(t *testing.T) {
	srv, cr := newFakeGateway(t, http.StatusOK, "ok")

	m, err := NewMailer(Config{
		Endpoint:   srv.URL,
		Token:      "mysite",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	_, err = m.SendText(context.Background(), "captcha-token", "Objekt 42", "Bitte um Rückruf", "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, "Objekt 42", cr.query.Get("subject"))
	assert.Equal(t, []string{"a@example.com"}, cr.query["recipient"])
	assert.Equal(t, "Bitte um Rückruf", string(cr.body))
	_, ok := cr.query["html"]
	assert.False(t, ok, "plain text must not set the html flag")
}
