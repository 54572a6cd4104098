// Package avatar derives profile image URLs from email addresses.
package avatar

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
)

// Resolver maps an email to an avatar image URL. Implementations must be
// deterministic and must not fail.
type Resolver interface {
	URLFor(email string) string
}

const DefaultBaseURL = "https://www.gravatar.com/avatar/"

// Gravatar builds gravatar.com URLs: md5 of the trimmed, lower-cased email
// plus size, rating and fallback-image parameters.
type Gravatar struct {
	BaseURL string
	Size    int
	Rating  string
	Default string
}

// NewGravatar returns the resolver used at registration: 200px, "pg" rated,
// mystery-person fallback.
func NewGravatar() Gravatar {
	return Gravatar{BaseURL: DefaultBaseURL, Size: 200, Rating: "pg", Default: "mm"}
}

func (g Gravatar) URLFor(email string) string {
	base := g.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	hash := ""
	if normalized != "" {
		sum := md5.Sum([]byte(normalized))
		hash = hex.EncodeToString(sum[:])
	} else {
		// gravatar serves the fallback image for the all-zero hash
		hash = strings.Repeat("0", 32)
	}

	q := url.Values{}
	if g.Size > 0 {
		q.Set("s", strconv.Itoa(g.Size))
	}
	if g.Rating != "" {
		q.Set("r", g.Rating)
	}
	if g.Default != "" {
		q.Set("d", g.Default)
	}
	if len(q) == 0 {
		return base + hash
	}
	return base + hash + "?" + q.Encode()
}
