package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// defaultTokenFile is where login stores credentials for the one-shot
// commands.
const defaultTokenFile = ".quern-token.json"

func saveToken(path string, tok *oauth2.Token) error {
	buf, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", path, err)
	}
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token file %s (run `quern login` first): %w", path, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(buf, tok); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	return tok, nil
}
