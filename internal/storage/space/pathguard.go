// Package space implements the space and storage engine: per-space SQLite
// databases behind a caching registry, a global tag store, hierarchical
// category management, and the document storage tree kept consistent with
// database rows.
package space

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/maruel/pane/internal/models"
)

// slugRe matches valid space and category slugs: lowercase ASCII letters,
// digits and dashes, 1 to 64 characters.
var slugRe = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// ValidSlug reports whether s is a valid space or category slug.
func ValidSlug(s string) bool {
	return slugRe.MatchString(s)
}

// CheckSlug returns a validation error unless s is a valid slug.
func CheckSlug(s string) error {
	if !ValidSlug(s) {
		return models.BadRequest("Invalid slug").WithDetail("slug", s)
	}
	return nil
}

// Slugify derives a slug from a display name: lowercased, runs of
// non-alphanumeric characters collapsed to a single dash, trimmed, and
// capped at 64 characters. Falls back to "untitled" when nothing survives.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > 64 {
		s = strings.Trim(s[:64], "-")
	}
	if s == "" {
		return "untitled"
	}
	return s
}

// resolveUnder resolves rel against root and verifies the result stays
// inside root. Absolute and non-local inputs are rejected, never
// re-rooted. Every filesystem operation in this package goes through
// this check before touching disk.
func resolveUnder(root, rel string) (string, error) {
	if !filepath.IsLocal(rel) {
		return "", models.PathEscape(rel)
	}
	abs := filepath.Clean(filepath.Join(root, rel))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", models.PathEscape(rel)
	}
	return abs, nil
}
