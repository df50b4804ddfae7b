package builder

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/dcmtrans-packager/internal/config"
)

// locatorScheme marks the locator as a VCS source for the build tool.
const locatorScheme = "git+"

// redactedPlaceholder replaces the credential in any user-visible text.
const redactedPlaceholder = "***"

var errEmptySecret = errors.New("secret file is empty")

// Locator builds the source locator the build tool fetches from:
// the repository URL with the credential injected as URL userinfo and the
// version tag appended. The returned secret is needed by callers to redact
// subprocess output; it must never be logged.
func Locator(cfg *config.Config) (locator, secret string, err error) {
	parsed, err := url.Parse(cfg.RepositoryURL)
	if err != nil {
		return "", "", fmt.Errorf("parse repository URL: %w", err)
	}

	secret, err = readSecret(cfg.SecretFile)
	if err != nil {
		return "", "", err
	}

	if secret != "" {
		parsed.User = url.User(secret)
	}

	return locatorScheme + parsed.String() + "@" + cfg.VersionTag, secret, nil
}

// readSecret loads and trims the credential. An unset or absent secret file
// means the repository is fetched without authentication.
func readSecret(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}

	secret := strings.TrimSpace(string(contents))
	if secret == "" {
		return "", fmt.Errorf("%s: %w", path, errEmptySecret)
	}

	return secret, nil
}

// Redact removes every occurrence of the secret from the provided text:
// the raw form, the userinfo encoding the locator carries, and the query
// escaping. Userinfo and query encodings differ (a space becomes "%20"
// versus "+"), so both are stripped.
func Redact(text, secret string) string {
	if secret == "" {
		return text
	}

	for _, form := range []string{
		secret,
		url.User(secret).String(),
		url.QueryEscape(secret),
	} {
		text = strings.ReplaceAll(text, form, redactedPlaceholder)
	}

	return text
}
