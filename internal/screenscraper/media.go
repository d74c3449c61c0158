package screenscraper

import (
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
)

// validMediaTypes are the media identifiers the mediaJeu endpoint
// accepts.
var validMediaTypes = map[string]struct{}{
	"box-2D":           {},
	"box-3D":           {},
	"mixrbv1":          {},
	"mixrbv2":          {},
	"ss":               {},
	"marquee":          {},
	"boitier-texture":  {},
	"boitier-2d":       {},
	"boitier-3d":       {},
	"support-texture":  {},
	"support-2d":       {},
	"wheel":            {},
	"wheelcarbon":      {},
	"wheelsteel":       {},
	"fanart":           {},
	"video":            {},
	"manuel":           {},
	"flyer":            {},
	"bezel4-3":         {},
	"bezel16-9":        {},
	"bezel16-10":       {},
	"screenshot":       {},
	"titleshot":        {},
	"sstitle":          {},
	"wheel-hd":         {},
	"wheel-carbon":     {},
	"wheel-steel":      {},
	"box-2d-side":      {},
	"box-3d-side":      {},
	"box-texture":      {},
	"manuel-fr":        {},
	"manuel-en":        {},
	"manuel-de":        {},
	"manuel-es":        {},
	"manuel-it":        {},
	"manuel-jp":        {},
	"video-normalized": {},
	"video-mix":        {},
}

// ValidMediaType reports whether the mediaJeu endpoint accepts the type.
func ValidMediaType(mediaType string) bool {
	_, ok := validMediaTypes[mediaType]
	return ok
}

// MediaURLByRegion walks the regions priority list and returns the URL
// of the first media entry matching the type and region. The medias
// argument is the decoded "medias" list of a game document.
func MediaURLByRegion(medias []any, mediaType string, regions []string) (string, error) {
	if !ValidMediaType(mediaType) {
		return "", fmt.Errorf("unknown media type %q", mediaType)
	}
	for _, region := range regions {
		for _, raw := range medias {
			media, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if media["type"] != mediaType || media["region"] != region {
				continue
			}
			u, ok := media["url"].(string)
			if !ok || u == "" {
				return "", fmt.Errorf("media %q has no url for region %q", mediaType, region)
			}
			return u, nil
		}
	}
	return "", fmt.Errorf("media %q not found for regions %v", mediaType, regions)
}

// Synopsis extracts the synopsis text in the requested language from a
// game object, with HTML entities unescaped. Returns empty when the
// game has no synopsis in that language.
func Synopsis(game map[string]any, lang string) string {
	entries, ok := game["synopsis"].([]any)
	if !ok {
		return ""
	}
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if entry["langue"] != lang {
			continue
		}
		if text, ok := entry["text"].(string); ok {
			return html.UnescapeString(text)
		}
	}
	return ""
}

// romNoisePattern strips the decorations ROM dumps carry in their
// filenames: region/revision tags in brackets, disc markers, and
// separator punctuation.
var (
	romNoisePattern   = regexp.MustCompile(`(\.nkit|!|&|Disc |Rev |-|\s*\([^()]*\)|\s*\[[^\[\]]*\])`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanROMName derives a human search name from a ROM file path.
func CleanROMName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = romNoisePattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(name, " "))
}
