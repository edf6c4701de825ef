package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/homeinfo/hisecon/sites"
	"github.com/homeinfo/hisecon/userconfig"
)

// Verifier checks a reCAPTCHA response against one site's secret. A nil
// return means the submission is human enough to relay.
type Verifier interface {
	Verify(ctx context.Context, secret, response, remoteIP string) error
}

// Config represents gateway options provided by the caller. Not meant to
// be used for serving without validation; see New.
type Config struct {
	// Sites resolves config tokens to delivery profiles. Required.
	Sites *sites.Registry
	// Verifier checks reCAPTCHA responses. Required.
	Verifier Verifier
	// Mail holds the daemon-wide relay settings, overridable per site.
	Mail userconfig.Mail
	// Relay overrides the SMTP relay for every site. Meant for tests;
	// when nil, a relay is built per request from Mail and the site's
	// overrides.
	Relay Relay
	// MaxBodySize caps the request body in bytes. Zero means 1 MiB.
	MaxBodySize int64
	// SuccessMessage is returned to the submitter after a successful
	// send. Defaults to the original's "Emails sent.".
	SuccessMessage string
}

// Gateway is the HTTP application handling contact-form submissions.
// It holds no per-request state and is safe for concurrent use.
type Gateway struct {
	sites      *sites.Registry
	verifier   Verifier
	mail       userconfig.Mail
	relay      Relay
	maxBody    int64
	successMsg string
}

// New validates caller input and returns a Gateway ready to serve.
func New(cfg Config) (*Gateway, error) {
	if cfg.Sites == nil {
		return nil, errors.New("must supply a site registry")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("must supply a reCAPTCHA verifier")
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 1 << 20
	}
	if cfg.SuccessMessage == "" {
		cfg.SuccessMessage = "Emails sent."
	}
	return &Gateway{
		sites:      cfg.Sites,
		verifier:   cfg.Verifier,
		mail:       cfg.Mail,
		relay:      cfg.Relay,
		maxBody:    cfg.MaxBodySize,
		successMsg: cfg.SuccessMessage,
	}, nil
}

// ServeHTTP implements http.Handler. One submission in, at most one
// batch of relayed emails out.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.With().Str("requestID", uuid.New().String()).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, g.maxBody)
	sub, err := parseSubmission(r)
	if err != nil {
		g.fail(w, logger, err)
		return
	}

	if sub.Token == "" {
		g.fail(w, logger, errBadRequest("No configuration provided."))
		return
	}
	site, ok := g.sites.Get(sub.Token)
	if !ok {
		g.fail(w, logger, errBadRequest(fmt.Sprintf("No such configuration: %q.", sub.Token)))
		return
	}
	logger = logger.With().Str("config", sub.Token).Logger()

	if sub.Response == "" {
		g.fail(w, logger, errBadRequest("No reCAPTCHA response provided."))
		return
	}
	if site.Secret == "" {
		g.fail(w, logger, errInternal("No secret specified for configuration."))
		return
	}
	if err := g.verifier.Verify(r.Context(), site.Secret, sub.Response, sub.RemoteIP); err != nil {
		logger.Warn().Err(err).Msg("reCAPTCHA verification failed")
		g.fail(w, logger, errBadRequest("reCAPTCHA check failed."))
		return
	}
	logger.Debug().Msg("got a valid reCAPTCHA")

	messages, err := g.messages(site, sub)
	if err != nil {
		g.fail(w, logger, err)
		return
	}

	if err := g.relayFor(site).Send(messages); err != nil {
		logger.Error().Err(err).Msg("relay failure")
		g.fail(w, logger, errInternal("Could not send emails."))
		return
	}

	logger.Info().Int("count", len(messages)).Msg("emails sent")
	w.Header().Set("Content-Type", "text/plain;charset=utf-8")
	_, _ = w.Write([]byte(g.successMsg))
}

// messages fans a submission out into one message per recipient. Site
// recipients come first, then the ones named in the request.
func (g *Gateway) messages(site sites.Site, sub *submission) ([]Message, error) {
	if sub.Text == "" {
		return nil, errBadRequest("No message body provided.")
	}

	recipients := make([]string, 0, len(site.Recipients)+len(sub.Recipients))
	recipients = append(recipients, site.Recipients...)
	recipients = append(recipients, sub.Recipients...)
	if len(recipients) == 0 {
		return nil, errBadRequest("No recipients specified.")
	}

	from := g.mail.From
	if site.SMTP != nil && site.SMTP.From != "" {
		from = site.SMTP.From
	}

	messages := make([]Message, 0, len(recipients))
	for _, to := range recipients {
		messages = append(messages, Message{
			From:        from,
			To:          to,
			Subject:     sub.Subject,
			ReplyTo:     sub.ReplyTo,
			ContentType: sub.ContentType,
			Body:        sub.Text,
		})
	}
	return messages, nil
}

// relayFor builds the relay for one site, applying its SMTP overrides
// to the daemon-wide settings.
func (g *Gateway) relayFor(site sites.Site) Relay {
	if g.relay != nil {
		return g.relay
	}

	rc := RelayConfig{
		Host:     g.mail.Host,
		Port:     g.mail.Port,
		Username: g.mail.Username,
		Password: g.mail.Password,
		Crypto:   g.mail.Crypto,
	}
	if s := site.SMTP; s != nil {
		if s.Host != "" {
			rc.Host = s.Host
		}
		if s.Port != 0 {
			rc.Port = s.Port
		}
		if s.User != "" {
			rc.Username = s.User
		}
		if s.Passwd != "" {
			rc.Password = s.Passwd
		}
		if s.Crypto != "" {
			rc.Crypto = s.Crypto
		}
	}
	return NewSMTPRelay(rc)
}

// fail logs the failure and answers with its client-facing message.
// Anything that is not a statusError becomes an opaque 500.
func (g *Gateway) fail(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var se *statusError
	if !errors.As(err, &se) {
		se = errInternal("Internal server error.")
	}

	if se.code >= 500 {
		logger.Error().Err(err).Msg("request failed")
	} else {
		logger.Warn().Err(err).Msg("rejected a submission")
	}
	writeJSONErr(w, se.code, se.message)
}
