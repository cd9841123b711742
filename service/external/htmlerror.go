package external

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	unknownServerError = "Error desconocido del servidor"
	genericPageError   = "Error del servidor del restaurante (página de error). Intenta de nuevo más tarde."
	loginInternalError = "El servidor del restaurante falló al procesar el login (error interno). " +
		"Comprueba que usuario y clave sean correctos. Si sigue fallando, usa «Probar login por formulario»."
)

var spaces = regexp.MustCompile(`\s+`)

// IsHTMLError reports whether body is an HTML error page (Slim/PHP) instead of JSON.
func IsHTMLError(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "slim application error")
}

func isPHPNullError(s string) bool {
	return strings.Contains(s, "get_object_vars") && strings.Contains(s, "null given")
}

// CleanServerErrorMessage turns an upstream error body into a short readable message.
func CleanServerErrorMessage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownServerError
	}

	lower := strings.ToLower(raw)
	if strings.Contains(lower, "<html") || strings.Contains(lower, "application error") {
		for _, label := range []string{"Message:", "Details:"} {
			detail, ok := strongLabelText(raw, label)
			if !ok {
				continue
			}
			if isPHPNullError(detail) {
				return loginInternalError
			}
			return "Error del servidor del restaurante: " + detail
		}

		return genericPageError
	}

	if isPHPNullError(raw) {
		return loginInternalError
	}

	if len([]rune(raw)) > 400 {
		return string([]rune(raw)[:397]) + "..."
	}

	return raw
}

// strongLabelText finds <strong>label</strong> and returns the text right after it.
func strongLabelText(page string, label string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}

	var detail string
	found := false
	doc.Find("strong").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.Text()), label) {
			return true
		}

		next := s.Nodes[0].NextSibling
		if next == nil || next.Type != html.TextNode {
			return true
		}

		text := strings.TrimSpace(spaces.ReplaceAllString(next.Data, " "))
		if text == "" {
			return true
		}
		if r := []rune(text); len(r) > 200 {
			text = string(r[:200])
		}

		detail = text
		found = true
		return false
	})

	return detail, found
}
