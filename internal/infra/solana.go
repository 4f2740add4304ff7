package infra

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
)

// LoadSigner reads the distribution keypair from a solana-keygen JSON file.
func LoadSigner(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("keypair path is required")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

// ParseMint decodes the configured token mint address.
func ParseMint(raw string) (solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("parse token mint %q: %w", raw, err)
	}
	return mint, nil
}

// NewHTTPClient returns the client shared by price sources and webhook notifications.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
