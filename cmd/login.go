package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/FranksOps/quern/internal/auth"
)

var loginTokenFile string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize with Google and save a token for one-shot commands",
	Long: `Login starts a loopback listener, opens Google's consent flow with it
as the redirect target, and saves the resulting token to a file that
the report and sites commands read.

The OAuth client must allow loopback redirect URIs.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginTokenFile, "token-file", defaultTokenFile, "where to save the token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return errors.New("google.client_id and google.client_secret are required (GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET)")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start loopback listener: %w", err)
	}
	defer ln.Close()

	redirectURL := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	flow := auth.NewFlow(cfg.Google.ClientID, cfg.Google.ClientSecret, redirectURL)

	authURL, issuedState, err := flow.Begin()
	if err != nil {
		return err
	}

	type callback struct {
		state  string
		code   string
		errMsg string
	}
	ch := make(chan callback, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		fmt.Fprintln(w, "Authorization received. You can close this tab.")
		select {
		case ch <- callback{state: q.Get("state"), code: q.Get("code"), errMsg: q.Get("error")}:
		default:
		}
	})}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Printf("Open this URL in your browser:\n\n  %s\n\n", authURL)
	fmt.Println("Waiting for authorization...")

	ctx := cmd.Context()
	var cb callback
	select {
	case cb = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	if cb.errMsg != "" {
		return fmt.Errorf("google authorization failed: %s", cb.errMsg)
	}

	tok, err := flow.Exchange(ctx, issuedState, cb.state, cb.code)
	if err != nil {
		return err
	}
	if err := saveToken(loginTokenFile, tok); err != nil {
		return err
	}

	fmt.Printf("Token saved to %s\n", loginTokenFile)
	return nil
}
