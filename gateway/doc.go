package gateway

// gateway is the server half of hisecon. It accepts contact-form
// submissions over HTTP in either of the two wire shapes the client
// emits, authenticates the calling site via its config token and a
// reCAPTCHA check, and fans the message out to the site's recipients
// through an SMTP relay. It holds no state between requests and tracks
// no delivery status.
