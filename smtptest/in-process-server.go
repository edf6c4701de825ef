package smtptest

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// messageData includes the body content and created timestamp for an
// email message, allowing us to inspect message bodies before/after a
// timestamp for correctness.
type messageData struct {
	created time.Time
	body    string
}

// InMemoryEmailStore retains email bodies in memory for comparison
// against a test's expected output. Designed to be goroutine safe since
// we don't know how many goroutines will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       sync.Mutex
	messages []messageData
}

// saveEmail stores the email body in memory along with a timestamp
// created just prior to saving.
func (es *InMemoryEmailStore) saveEmail(bod string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.messages = append(es.messages, messageData{
		created: time.Now(),
		body:    bod,
	})
}

// retrieve returns all message bodies saved at or after epoch
// nanoseconds t.
func (es *InMemoryEmailStore) retrieve(t int64) []string {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]string, 0, len(es.messages))
	for _, m := range es.messages {
		if m.created.UnixNano() >= t {
			r = append(r, m.body)
		}
	}
	return r
}

// backend implements smtp.Backend by opening sessions against a shared
// InMemoryEmailStore.
type backend struct {
	store *InMemoryEmailStore
}

func (be *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{store: be.store}, nil
}

// session implements smtp.Session. The envelope callbacks are no-ops;
// only the message data matters to the tests.
type session struct {
	store *InMemoryEmailStore
}

func (s *session) Mail(_ string, _ *smtp.MailOptions) error { return nil }

func (s *session) Rcpt(_ string, _ *smtp.RcptOptions) error { return nil }

func (s *session) Reset() {}

func (s *session) Logout() error { return nil }

// Data stores the email body in memory for retrieval at the end of the
// test.
func (s *session) Data(r io.Reader) error {
	// doubtful we'll get an email this big, but we need a limit
	var maxEmailSize int64 = 100 * units.MiB
	buf, err := io.ReadAll(io.LimitReader(r, maxEmailSize))
	if err != nil {
		return err
	}
	s.store.saveEmail(string(buf))
	return nil
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer.
type InProcessServer struct {
	server   *smtp.Server
	store    *InMemoryEmailStore
	listener net.Listener
}

// NewInProcessServer creates an InProcessServer, including configuring
// its SMTP server to store incoming messages in memory. The listener is
// opened right away on a random loopback port so callers can read
// Address before Start returns.
func NewInProcessServer() (*InProcessServer, error) {
	store := &InMemoryEmailStore{}

	srv := smtp.NewServer(&backend{store: store})
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	return &InProcessServer{
		server:   srv,
		store:    store,
		listener: l,
	}, nil
}

// Start serves on the already-open listener. Blocking.
func (is *InProcessServer) Start() error {
	return is.server.Serve(is.listener)
}

// Close shuts down the test server. You must initialize a new
// InProcessServer instead of restarting this one.
func (is *InProcessServer) Close() {
	is.server.Close()
}

// RetrieveEmails returns a slice of all message bodies (as strings)
// received at or after epoch nanoseconds t.
func (is *InProcessServer) RetrieveEmails(t int64) []string {
	return is.store.retrieve(t)
}

// Address returns the host:port of the test SMTP server.
func (is *InProcessServer) Address() string {
	return is.listener.Addr().String()
}
