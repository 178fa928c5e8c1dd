package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/sponsorships/01HZXW2N8QK3T7V9M4B6C8D0E2":       "/v1/sponsorships/:id",
		"/v1/sponsorships/01HZXW2N8QK3T7V9M4B6C8D0E2/pause": "/v1/sponsorships/:id/pause",
		"/v1/sponsorship-requests":           "/v1/sponsorship-requests",
		"/v1/sponsorship-requests?status=pending": "/v1/sponsorship-requests",
		"/v1/pages/children":                 "/v1/pages/children",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
