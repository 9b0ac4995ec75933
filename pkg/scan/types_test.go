package scan

import (
	"net/url"
	"strings"
	"testing"
)

func TestTechniqueNames(t *testing.T) {
	tests := []struct {
		technique Technique
		name      string
	}{
		{TechniqueError, "error"},
		{TechniqueBooleanBlind, "boolean_blind"},
		{TechniqueTimeBlind, "time_blind"},
		{TechniqueUnion, "union"},
	}

	for _, tt := range tests {
		if tt.technique.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.technique.String(), tt.name)
		}
		parsed, err := ParseTechnique(tt.name)
		if err != nil || parsed != tt.technique {
			t.Errorf("ParseTechnique(%q) = %v, %v", tt.name, parsed, err)
		}
	}

	if _, err := ParseTechnique("oob"); err == nil {
		t.Error("expected error for unknown technique name")
	}
}

func TestBuildRequestQueryLocation(t *testing.T) {
	p := InjectionPoint{
		BaseURL:   "http://shop.test/item?cat=books",
		Method:    "GET",
		Parameter: "id",
		Location:  LocationQuery,
		SeedValue: "1",
	}

	method, reqURL, body, _, err := p.BuildRequest("' OR '1'='1")
	if err != nil {
		t.Fatal(err)
	}
	if method != "GET" || body != "" {
		t.Errorf("unexpected method/body: %s %q", method, body)
	}

	u, err := url.Parse(reqURL)
	if err != nil {
		t.Fatal(err)
	}
	if got := u.Query().Get("id"); got != "1' OR '1'='1" {
		t.Errorf("payload not appended to seed: %q", got)
	}
	if u.Query().Get("cat") != "books" {
		t.Error("existing query parameters must be preserved")
	}
}

func TestBuildRequestBodyLocation(t *testing.T) {
	p := InjectionPoint{
		BaseURL:   "http://shop.test/search",
		Method:    "POST",
		Parameter: "q",
		Location:  LocationBody,
		SeedValue: "widget",
	}

	_, reqURL, body, headers, err := p.BuildRequest("'--")
	if err != nil {
		t.Fatal(err)
	}
	if reqURL != p.BaseURL {
		t.Errorf("body injection must not touch the URL: %q", reqURL)
	}
	if headers["Content-Type"] != "application/x-www-form-urlencoded" {
		t.Errorf("missing form content type: %v", headers)
	}

	form, err := url.ParseQuery(body)
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("q") != "widget'--" {
		t.Errorf("form value = %q", form.Get("q"))
	}
}

func TestBuildRequestHeaderAndCookie(t *testing.T) {
	header := InjectionPoint{BaseURL: "http://t.test/", Method: "GET", Parameter: "X-Track", Location: LocationHeader, SeedValue: "abc"}
	_, _, _, headers, err := header.BuildRequest("'")
	if err != nil {
		t.Fatal(err)
	}
	if headers["X-Track"] != "abc'" {
		t.Errorf("header value = %q", headers["X-Track"])
	}

	cookie := InjectionPoint{BaseURL: "http://t.test/", Method: "GET", Parameter: "session", Location: LocationCookie, SeedValue: "1"}
	_, _, _, headers, err = cookie.BuildRequest("' OR 1=1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(headers["Cookie"], "session=") {
		t.Errorf("cookie header = %q", headers["Cookie"])
	}
}

func TestVulnStatusTransitions(t *testing.T) {
	v := &Vulnerability{Status: StatusPending}

	if err := v.SetStatus(StatusExploited); err == nil {
		t.Error("pending -> exploited must be rejected")
	}
	if err := v.SetStatus(StatusConfirmed); err != nil {
		t.Errorf("pending -> confirmed should pass: %v", err)
	}
	if err := v.SetStatus(StatusExploited); err != nil {
		t.Errorf("confirmed -> exploited should pass: %v", err)
	}
	if err := v.SetStatus(StatusFailed); err == nil {
		t.Error("terminal state must be sticky")
	}
	if err := v.SetStatus(StatusConfirmed); err == nil {
		t.Error("backward transition must be rejected")
	}
}
