// Package pagemeta resolves display titles for URL mappings so consumers can
// show "Open: Weekly Report" instead of a bare address.
package pagemeta

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

var skipPrefixes = []string{"about:", "moz-extension:", "file:", "chrome:", "resource:", "data:"}

var client = &http.Client{Timeout: 15 * time.Second}

// Title fetches a URL and extracts its page title. Non-HTTP schemes are
// refused rather than fetched.
func Title(ctx context.Context, rawURL string) (string, error) {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(rawURL, prefix) {
			return "", fmt.Errorf("skipping non-HTTP URL: %s", rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", rawURL, err)
	}
	return strings.TrimSpace(article.Title), nil
}
