package gateway

import (
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// submission is a parsed request, independent of which wire shape
// carried it.
type submission struct {
	Token       string
	Response    string
	Subject     string
	Text        string
	Recipients  []string
	ContentType string
	ReplyTo     string
	RemoteIP    string
}

// jsonSubmission is the JSON wire shape, matching the client's JSON
// encoding field for field.
type jsonSubmission struct {
	Config      string   `json:"config"`
	Response    string   `json:"response"`
	Subject     string   `json:"subject"`
	Text        string   `json:"text"`
	Recipients  []string `json:"recipients"`
	ContentType string   `json:"contentType"`
	ReplyTo     string   `json:"replyTo"`
}

// parseSubmission reads either wire shape out of an HTTP request. The
// caller is expected to have capped r.Body already.
func parseSubmission(r *http.Request) (*submission, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &statusError{
			code:    http.StatusRequestEntityTooLarge,
			message: "Request body too large.",
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		return parseJSONSubmission(body, r)
	}
	return parseQuerySubmission(body, r)
}

func parseJSONSubmission(body []byte, r *http.Request) (*submission, error) {
	var js jsonSubmission
	if err := json.Unmarshal(body, &js); err != nil {
		return nil, errBadRequest("Invalid JSON data.")
	}

	if js.ContentType == "" {
		return nil, errBadRequest("No content type provided")
	}

	return &submission{
		Token:       js.Config,
		Response:    js.Response,
		Subject:     js.Subject,
		Text:        js.Text,
		Recipients:  js.Recipients,
		ContentType: js.ContentType,
		ReplyTo:     js.ReplyTo,
		RemoteIP:    remoteIP(r),
	}, nil
}

func parseQuerySubmission(body []byte, r *http.Request) (*submission, error) {
	q := r.URL.Query()

	// The query shape carries the subject as a parameter, so a missing
	// parameter is an error while an empty JSON field is not.
	if _, ok := q["subject"]; !ok {
		return nil, errBadRequest("No subject provided")
	}

	subject := q.Get("subject")
	// Legacy clients percent-encode the subject a second time. The
	// second pass must only decode %XX sequences: a plus sign at this
	// point is a literal plus, not an encoded space.
	if un, err := url.PathUnescape(subject); err == nil {
		subject = un
	}

	text := string(body)
	contentType := queryContentType(q)
	if contentType == "text/plain" {
		text = strings.ReplaceAll(text, "<br>", "\n")
	}

	var recipients []string
	for _, rs := range strings.Split(q.Get("recipients"), ",") {
		if rs = strings.TrimSpace(rs); rs != "" {
			recipients = append(recipients, rs)
		}
	}
	for _, rc := range q["recipient"] {
		if rc != "" {
			recipients = append(recipients, rc)
		}
	}
	if issuer := q.Get("issuer"); issuer != "" {
		recipients = append(recipients, issuer)
	}

	ip := q.Get("remoteip")
	if ip == "" {
		ip = remoteIP(r)
	}

	return &submission{
		Token:       q.Get("config"),
		Response:    q.Get("response"),
		Subject:     subject,
		Text:        text,
		Recipients:  recipients,
		ContentType: contentType,
		ReplyTo:     q.Get("reply_to"),
		RemoteIP:    ip,
	}, nil
}

// queryContentType resolves the query shape's two generations of format
// switches: an explicit format parameter wins over the older html flag.
func queryContentType(q url.Values) string {
	switch q.Get("format") {
	case "html":
		return "text/html"
	case "text":
		return "text/plain"
	}
	if _, ok := q["html"]; ok {
		return "text/html"
	}
	return "text/plain"
}

// remoteIP extracts the peer address without its port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
