package models

import (
	"regexp"
	"strings"
)

const EmptyField = "—"

func IsDeliveryServiceName(payload string) (bool, ThirdPartyMerchant) {
	lower := strings.ToLower(payload)
	if strings.Contains(lower, "didi") {
		return true, DidiFood
	} else if strings.Contains(lower, "rappi") {
		return true, Rappi
	} else if strings.Contains(lower, "pedidosya") || strings.Contains(lower, "pedidos ya") {
		return true, PedidosYa
	} else if strings.Contains(lower, "propio") || strings.Contains(lower, "domicilio") {
		return true, InHouse
	} else {
		return false, UnknownMerchant
	}
}

// NormalizeDisplayNum strips the leading # DiDi puts in front of display numbers.
func NormalizeDisplayNum(displayNum string) string {
	return strings.TrimPrefix(strings.TrimSpace(displayNum), "#")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LooksLikeDidiDisplayNum reports whether cod is a short DiDi display number
// (#379001 or 379001) rather than the long order id the restaurant API returns.
func LooksLikeDidiDisplayNum(cod string) bool {
	s := strings.TrimSpace(cod)
	if s == "" || len(s) > 15 {
		return false
	}
	if strings.HasPrefix(s, "#") && len(s) > 1 && isDigits(s[1:]) {
		return true
	}

	return isDigits(s) && len(s) >= 4 && len(s) <= 10
}

var (
	privacyRegex   = regexp.MustCompile(`(?i)privacy\s+protection\s*`)
	asterisksRegex = regexp.MustCompile(`\*+`)
)

// CleanPrivacyName removes the masking DiDi and Rappi apply to customer names.
func CleanPrivacyName(s string) string {
	s = strings.TrimSpace(s)
	s = privacyRegex.ReplaceAllString(s, "")
	s = asterisksRegex.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeCodigo keeps a code safe to use as a folder name.
func SanitizeCodigo(codigo string) string {
	s := strings.TrimSpace(codigo)
	var b strings.Builder
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "sin_codigo"
	}

	return b.String()
}

// SanitizePath replaces characters that are not allowed in file names.
func SanitizePath(name string) string {
	s := strings.TrimSpace(name)
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`\/:*?"<>|`, r) {
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(s, ". ")
	if s == "" {
		return "sin_nombre"
	}

	return s
}
