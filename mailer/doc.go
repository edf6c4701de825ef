package mailer

// mailer is the client half of hisecon. It turns a contact-form
// submission into a single gateway request and performs exactly one HTTP
// call per send. It is not concerned with how the gateway delivers the
// mail, and it performs no retries; transport and gateway failures are
// handed back to the caller unchanged.
