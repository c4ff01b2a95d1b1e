package registry

import (
	"regexp"
	"strings"

	"github.com/filmbot/letterboxd-bot/internal/domain"
)

var (
	profileURLRe = regexp.MustCompile(`//letterboxd\.com/([a-z0-9_]+)`)
	bareHandleRe = regexp.MustCompile(`^[a-z0-9_]+`)
)

// NormalizeHandle resolves a raw input, either a full Letterboxd profile URL
// or a bare username, to the handle used as the storage key. The same rule is
// applied on add, get and remove so identical inputs always resolve to the
// same record.
func NormalizeHandle(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))

	if m := profileURLRe.FindStringSubmatch(lowered); m != nil {
		return m[1], nil
	}
	if m := bareHandleRe.FindString(lowered); m != "" {
		return m, nil
	}
	return "", domain.ErrInvalidHandle
}
