package dopigo

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// PathSeparator rozdziela poziomy w full_category_path ("A > B > C").
const PathSeparator = ">"

// FeedCategory to jeden <list-item> z feedu kategorii.
type FeedCategory struct {
	ID       int64
	Name     string
	RootName string
	FullPath string // full_category_path, jeśli był w feedzie
}

// Path zwraca pełną ścieżkę; bez full_category_path składa "root > name".
func (c FeedCategory) Path() string {
	if c.FullPath != "" {
		return c.FullPath
	}
	var segs []string
	if c.RootName != "" {
		segs = append(segs, c.RootName)
	}
	if c.Name != "" {
		segs = append(segs, c.Name)
	}
	return strings.Join(segs, " "+PathSeparator+" ")
}

type xmlListItem struct {
	Category *struct {
		ID   string `xml:"id"`
		Name string `xml:"name"`
		Root *struct {
			Name string `xml:"name"`
		} `xml:"root"`
	} `xml:"category"`
	FullPath string `xml:"full_category_path"`
}

// ParseCategoryFeed czyta strumieniowo wszystkie <list-item>, niezależnie od zagnieżdżenia.
// Elementy bez <category> są pomijane.
func ParseCategoryFeed(r io.Reader) ([]FeedCategory, error) {
	dec := xml.NewDecoder(bufio.NewReader(r))
	dec.CharsetReader = func(cs string, in io.Reader) (io.Reader, error) {
		return charset.NewReaderLabel(NormalizeCharset(cs), in)
	}

	var out []FeedCategory
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse category XML: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "list-item" {
			continue
		}
		var it xmlListItem
		if err := dec.DecodeElement(&it, &se); err != nil {
			return nil, fmt.Errorf("parse category XML: %w", err)
		}
		if it.Category == nil {
			continue
		}
		fc := FeedCategory{
			ID:       parseID(it.Category.ID),
			Name:     strings.TrimSpace(it.Category.Name),
			FullPath: strings.TrimSpace(it.FullPath),
		}
		if it.Category.Root != nil {
			fc.RootName = strings.TrimSpace(it.Category.Root.Name)
		}
		out = append(out, fc)
	}
	return out, nil
}

func parseID(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeCharset mapuje nietypowe etykiety na nazwy rozpoznawane przez charset.NewReaderLabel
func NormalizeCharset(cs string) string {
	c := strings.TrimSpace(strings.ToLower(cs))
	switch c {
	case "latin ii", "latin-2", "latin2", "iso8859-2", "iso_8859-2":
		return "iso-8859-2"
	case "latin5", "latin-5", "iso8859-9", "iso_8859-9":
		return "iso-8859-9"
	case "cp1250", "windows1250", "win-1250":
		return "windows-1250"
	case "cp1254", "windows1254", "win-1254":
		return "windows-1254"
	default:
		return c
	}
}
