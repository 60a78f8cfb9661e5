package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"
)

func TestFlow_Begin(t *testing.T) {
	f := NewFlow("client-id", "secret", "http://localhost:8080/auth/callback")

	authURL, state, err := f.Begin()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state == "" {
		t.Fatal("expected a non-empty state")
	}

	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("auth URL does not parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != state {
		t.Errorf("state not carried in URL: %q vs %q", q.Get("state"), state)
	}
	if q.Get("scope") != ScopeWebmasters {
		t.Errorf("unexpected scope: %q", q.Get("scope"))
	}
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("expected offline access with consent prompt, got %v", q)
	}

	// Two begins must not share a state.
	_, state2, _ := f.Begin()
	if state2 == state {
		t.Errorf("states should be unique per begin")
	}
}

func TestFlow_Exchange(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse token request: %v", err)
		}
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","refresh_token":"ref","expires_in":3600}`))
	}))
	defer ts.Close()

	f := NewFlowWithEndpoint("client-id", "secret", "http://localhost/cb", oauth2.Endpoint{
		AuthURL:  ts.URL + "/auth",
		TokenURL: ts.URL + "/token",
	})

	tok, err := f.Exchange(context.Background(), "issued", "issued", "good-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.AccessToken != "tok" || tok.RefreshToken != "ref" {
		t.Errorf("unexpected token: %+v", tok)
	}
}

func TestFlow_ExchangeStateMismatch(t *testing.T) {
	f := NewFlow("client-id", "secret", "http://localhost/cb")

	_, err := f.Exchange(context.Background(), "issued", "tampered", "code")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}

	_, err = f.Exchange(context.Background(), "", "", "code")
	if !errors.Is(err, ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch for empty issued state, got %v", err)
	}
}

func TestStage_Transitions(t *testing.T) {
	cases := []struct {
		from, to Stage
		ok       bool
	}{
		{StageAnonymous, StagePending, true},
		{StagePending, StagePending, true}, // re-issued auth URL
		{StagePending, StageAuthorized, true},
		{StageAuthorized, StageAnonymous, true}, // logout
		{StageAnonymous, StageAuthorized, false},
		{StageAuthorized, StagePending, false},
	}
	for _, tc := range cases {
		if got := ValidTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("ValidTransition(%s, %s): got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestStage_String(t *testing.T) {
	if StageAnonymous.String() != "anonymous" ||
		StagePending.String() != "pending" ||
		StageAuthorized.String() != "authorized" {
		t.Errorf("unexpected stage names: %s %s %s", StageAnonymous, StagePending, StageAuthorized)
	}
}
