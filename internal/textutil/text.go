// Package textutil: sanityzacja tekstów z zewnętrznego katalogu.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reTags    = regexp.MustCompile(`<[^>]*>`)
	reSpaces  = regexp.MustCompile(`\s+`)
	reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)
	reNonFile = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	foldLatin = strings.NewReplacer("ı", "i", "ß", "ss", "ø", "o", "Ø", "o", "ł", "l", "Ł", "l", "đ", "d", "Đ", "d")
)

// SanitizeText usuwa tagi HTML i zwija białe znaki (jedna linia).
func SanitizeText(s string) string {
	s = reTags.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fold zdejmuje znaki diakrytyczne ("Şık Ürün" → "Sik Urun").
func Fold(s string) string {
	s = foldLatin.Replace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug – nazwa atrybutu w formie klucza ("Beden Ölçüsü" → "beden-olcusu").
func Slug(s string) string {
	s = strings.ToLower(Fold(SanitizeText(s)))
	s = reNonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SanitizeFileName zostawia w nazwie pliku tylko bezpieczne znaki.
func SanitizeFileName(s string) string {
	s = reNonFile.ReplaceAllString(Fold(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "file"
	}
	return s
}
