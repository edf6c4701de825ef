package userconfig

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/docker/go-units"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		description   string
		conf          string
		shouldBeError bool
		shouldBeEmpty bool
	}{
		{
			description:   "valid case",
			shouldBeError: false,
			shouldBeEmpty: false,
			conf: `---
server:
    listen: ":8080"
    sites: /etc/hisecon.json
    corsOrigins:
        - https://www.example.com
    maxBodySize: 1MB
mail:
    host: smtp.example.com
    port: 587
    username: hisecon
    password: 123456-A_BCDE
    crypto: tls
    from: noreply@example.com`,
		},
		{
			description:   "not yaml",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf:          `this is not yaml`,
		},
		{
			description:   "missing mail section",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `---
server:
    listen: ":8080"
    sites: /etc/hisecon.json`,
		},
		{
			description:   "missing server section",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `---
mail:
    host: smtp.example.com
    from: noreply@example.com`,
		},
		{
			description:   "unparseable body size",
			shouldBeError: true,
			shouldBeEmpty: true,
			conf: `---
server:
    sites: /etc/hisecon.json
    maxBodySize: one heap
mail:
    host: smtp.example.com
    from: noreply@example.com`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			b := bytes.NewBuffer([]byte(tc.conf))
			m, err := Parse(b)

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if reflect.DeepEqual(*m, Meta{}) != tc.shouldBeEmpty {
				l := map[bool]string{
					true:  "to be",
					false: "not to be",
				}
				t.Errorf(
					"%v: expected the Meta %v empty, but got the opposite",
					tc.description,
					l[tc.shouldBeEmpty],
				)
			}
		})
	}
}

func TestServerCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		description   string
		server        Server
		shouldBeError bool
		expected      Server
	}{
		{
			description: "defaults applied",
			server:      Server{SitesPath: "/etc/hisecon.json"},
			expected: Server{
				ListenAddress:  ":8080",
				SitesPath:      "/etc/hisecon.json",
				CORSOrigins:    []string{"*"},
				MaxBodySize:    units.MiB,
				SuccessMessage: "Emails sent.",
			},
		},
		{
			description:   "missing sites path",
			server:        Server{ListenAddress: ":8080"},
			shouldBeError: true,
		},
		{
			description: "explicit values kept",
			server: Server{
				ListenAddress:  ":9000",
				SitesPath:      "./sites.json",
				CORSOrigins:    []string{"https://www.example.com"},
				MaxBodySize:    2 * units.MiB,
				SuccessMessage: "Danke!",
			},
			expected: Server{
				ListenAddress:  ":9000",
				SitesPath:      "./sites.json",
				CORSOrigins:    []string{"https://www.example.com"},
				MaxBodySize:    2 * units.MiB,
				SuccessMessage: "Danke!",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			actual, err := tc.server.CheckAndSetDefaults()

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if !tc.shouldBeError && !reflect.DeepEqual(actual, tc.expected) {
				t.Errorf(
					"%v: expected the config %+v but got %+v",
					tc.description,
					tc.expected,
					actual,
				)
			}
		})
	}
}

func TestMailCheckAndSetDefaults(t *testing.T) {
	testCases := []struct {
		description   string
		mail          Mail
		shouldBeError bool
	}{
		{
			description: "valid with defaults",
			mail:        Mail{Host: "smtp.example.com", From: "noreply@example.com"},
		},
		{
			description:   "missing host",
			mail:          Mail{From: "noreply@example.com"},
			shouldBeError: true,
		},
		{
			description:   "missing from address",
			mail:          Mail{Host: "smtp.example.com"},
			shouldBeError: true,
		},
		{
			description:   "unknown crypto",
			mail:          Mail{Host: "smtp.example.com", From: "noreply@example.com", Crypto: "rot13"},
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			c, err := tc.mail.CheckAndSetDefaults()

			if (err != nil) != tc.shouldBeError {
				t.Errorf(
					"%v: unexpected error status: wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}

			if !tc.shouldBeError && c.Port != 25 && tc.mail.Port == 0 {
				t.Errorf("%v: expected the default port 25 but got %v", tc.description, c.Port)
			}
		})
	}
}
