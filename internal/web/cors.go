package web

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errCORSNoOrigins      = errors.New("cors.no_origins")
	errCORSWildcardOrigin = errors.New("cors.wildcard_origin")
	errCORSInvalidOrigin  = errors.New("cors.invalid_origin")
)

// ConfigureCORS enables cross-origin requests for the supplied origins.
// Origins must be explicit scheme://host values; wildcards are rejected
// because the API accepts credentialed requests.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized, normalizeErr := normalizeOrigins(logger, allowedOrigins)
	if normalizeErr != nil {
		return nil, normalizeErr
	}
	return cors.New(cors.Config{
		AllowOrigins:     normalized,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}), nil
}

// normalizeOrigins validates each configured origin and returns the sorted,
// deduplicated scheme://host list.
func normalizeOrigins(logger *zap.Logger, allowed []string) ([]string, error) {
	seen := make(map[string]struct{})
	normalized := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		candidate, originErr := normalizeOrigin(trimmed)
		if originErr != nil {
			return nil, originErr
		}
		if _, duplicate := seen[candidate]; duplicate {
			continue
		}
		seen[candidate] = struct{}{}
		if strings.HasPrefix(candidate, "http://") && !isLoopbackOrigin(candidate) {
			logger.Warn("cors origin configured without TLS", zap.String("origin", candidate))
		}
		normalized = append(normalized, candidate)
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("cors.configure: %w", errCORSNoOrigins)
	}
	sort.Strings(normalized)
	return normalized, nil
}

// normalizeOrigin reduces one configured value to scheme://host, rejecting
// anything with a path, query, fragment, or non-http(s) scheme.
func normalizeOrigin(raw string) (string, error) {
	if raw == "*" {
		return "", fmt.Errorf("cors.configure: %w", errCORSWildcardOrigin)
	}
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil || parsed.Host == "" {
		return "", fmt.Errorf("cors.configure: %w: %s", errCORSInvalidOrigin, raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("cors.configure: %w: %s", errCORSInvalidOrigin, raw)
	}
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", fmt.Errorf("cors.configure: %w: %s", errCORSInvalidOrigin, raw)
	}
	return scheme + "://" + parsed.Host, nil
}

func isLoopbackOrigin(origin string) bool {
	parsed, parseErr := url.Parse(origin)
	if parseErr != nil {
		return false
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
