package netutil

import "testing"

func TestRegistrableDomain(t *testing.T) {
	cases := map[string]string{
		"example.com":          "example.com",
		"www.example.com":      "example.com",
		"example.com:8080":     "example.com",
		"www.example.com:8080": "example.com",
		"WWW.Example.COM":      "example.com",
	}
	for host, want := range cases {
		if got := RegistrableDomain(host); got != want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", host, got, want)
		}
	}
}
