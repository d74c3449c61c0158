package screenscraper

import (
	"strings"

	"github.com/artie-scraper/artie/pkg/client"
)

const searchURL = "https://api.screenscraper.fr/api2/jeuRecherche.php"

// SearchURL builds the jeuRecherche name-search URL, used as a fallback
// when the filename lookup returns no game.
func SearchURL(creds Credentials, term, systemID string) (string, error) {
	params, err := creds.baseParams()
	if err != nil {
		return "", err
	}
	params.Set("recherche", term)
	params.Set("systemeid", systemID)
	return searchURL + "?" + params.Encode(), nil
}

// similarityThreshold is the minimum name similarity for a ranked match.
const similarityThreshold = 0.5

// BestMatch picks the search result closest to the term. A single result
// is taken as-is; multiple results are ranked by word-set similarity
// against the term, and when no result clears the threshold the first one
// stands as the fallback. Returns nil when the document holds no games.
func BestMatch(results *client.Document, term string) map[string]any {
	if results == nil {
		return nil
	}
	games := results.List("jeux")
	if len(games) == 0 {
		return nil
	}
	if len(games) == 1 {
		game, _ := games[0].(map[string]any)
		return game
	}

	var best map[string]any
	bestScore := 0.0
	termLower := strings.ToLower(term)
	for _, raw := range games {
		game, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := game["nom"].(string)
		score := nameSimilarity(termLower, strings.ToLower(name))
		if score > bestScore {
			bestScore = score
			best = game
		}
	}
	if bestScore > similarityThreshold {
		return best
	}
	first, _ := games[0].(map[string]any)
	return first
}

// nameSimilarity is the Jaccard similarity of the two names' word sets.
func nameSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
