package bot

import (
	"strings"

	"github.com/keepmind9/tgembed/pkg/constants"
)

// maskSecret masks sensitive information for logging
func maskSecret(s string) string {
	if len(s) <= constants.MinSecretLengthForMasking {
		return "***"
	}
	return s[:constants.SecretMaskPrefixLength] + "***" + s[len(s)-constants.SecretMaskSuffixLength:]
}

// maskSecretIn replaces every occurrence of secret in s with its mask
func maskSecretIn(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, maskSecret(secret))
}

// MaskToken is maskSecret for callers outside the package
func MaskToken(token string) string {
	return maskSecret(token)
}

// byteCost counts every byte as one
func byteCost(byte) int { return 1 }

// splitText cuts text into pieces whose cost is at most limit, on rune
// boundaries, preferring the last newline in each piece. cost gives the
// size of one byte once encoded.
func splitText(text string, limit int, cost func(byte) int) []string {
	if limit <= 0 {
		return []string{text}
	}

	var parts []string
	for {
		cut, used := 0, 0
		for cut < len(text) && used+cost(text[cut]) <= limit {
			used += cost(text[cut])
			cut++
		}
		if cut == len(text) {
			break
		}
		end := cut
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > cut/2 {
			cut = nl + 1
		}
		if cut == 0 {
			cut = end
		}
		if cut == 0 {
			// a single byte costs more than limit
			cut = 1
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" || parts == nil {
		parts = append(parts, text)
	}
	return parts
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
