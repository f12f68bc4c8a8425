package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MaxDisplayNameLength = 64
	MaxBioLength         = 500
	MaxPostBodyLength    = 5000
	MaxCommentLength     = 2000
	MaxReactionLength    = 32
	MaxAltTextLength     = 300
	MaxImagesPerPost     = 4
)

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateDisplayName checks a user or persona display name.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxDisplayNameLength)
	}
	return nil
}

// ValidateBio allows empty bios.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("bio cannot exceed %d characters", MaxBioLength)
	}
	return nil
}

func ValidatePostBody(body string, hasImages bool) error {
	if strings.TrimSpace(body) == "" && !hasImages {
		return fmt.Errorf("post must have a body or images")
	}
	if utf8.RuneCountInString(body) > MaxPostBodyLength {
		return fmt.Errorf("post cannot exceed %d characters", MaxPostBodyLength)
	}
	return nil
}

func ValidateComment(body string) error {
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("comment cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return fmt.Errorf("comment cannot exceed %d characters", MaxCommentLength)
	}
	return nil
}

// ValidateReaction accepts a short emoji or shortcode.
func ValidateReaction(reaction string) error {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return fmt.Errorf("reaction cannot be empty")
	}
	if utf8.RuneCountInString(reaction) > MaxReactionLength {
		return fmt.Errorf("reaction cannot exceed %d characters", MaxReactionLength)
	}
	return nil
}

// ValidateBrandColor expects #RRGGBB.
func ValidateBrandColor(color string) error {
	if !hexColorRegex.MatchString(color) {
		return fmt.Errorf("brand color must be a hex color like #1A2B3C")
	}
	return nil
}

// ValidateImageURL accepts absolute http(s) URLs only.
func ValidateImageURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("image url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("image url must use http or https")
	}
	return nil
}

func ValidateAltText(alt string) error {
	if utf8.RuneCountInString(alt) > MaxAltTextLength {
		return fmt.Errorf("alt text cannot exceed %d characters", MaxAltTextLength)
	}
	return nil
}

// IsValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s) && strings.HasPrefix(strings.ToLower(s), "0x")
}

// NormalizeAddress lowercases an address for storage and lookups.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ClampLimit applies a default and an upper bound to page sizes.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
