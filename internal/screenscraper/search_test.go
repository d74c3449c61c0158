package screenscraper

import (
	"net/url"
	"testing"

	"github.com/artie-scraper/artie/pkg/client"
)

func TestSearchURL(t *testing.T) {
	raw, err := SearchURL(testCredentials(), "Super Game", "75")
	if err != nil {
		t.Fatalf("SearchURL failed: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL produced: %v", err)
	}
	if u.Path != "/api2/jeuRecherche.php" {
		t.Errorf("path = %s, want /api2/jeuRecherche.php", u.Path)
	}
	q := u.Query()
	if q.Get("recherche") != "Super Game" || q.Get("systemeid") != "75" {
		t.Errorf("search params not forwarded: %v", q)
	}
	if q.Get("devid") != "dev42" || q.Get("ssid") != "player1" {
		t.Errorf("credentials not forwarded: %v", q)
	}
}

func searchDoc(names ...string) *client.Document {
	games := make([]any, len(names))
	for i, name := range names {
		games[i] = map[string]any{"nom": name, "id": name}
	}
	return &client.Document{Response: map[string]any{"jeux": games}}
}

func TestBestMatch(t *testing.T) {
	// A single result is taken without ranking.
	match := BestMatch(searchDoc("Whatever Game"), "Super Quest")
	if match == nil || match["nom"] != "Whatever Game" {
		t.Errorf("single result match = %v, want Whatever Game", match)
	}

	// Multiple results rank by word similarity against the term.
	match = BestMatch(searchDoc("Racing Fever", "Super Quest III", "Quest Maker"), "Super Quest III")
	if match == nil || match["nom"] != "Super Quest III" {
		t.Errorf("ranked match = %v, want Super Quest III", match)
	}

	// Nothing clears the threshold: the first result stands.
	match = BestMatch(searchDoc("Alpha", "Beta", "Gamma"), "Completely Different Name")
	if match == nil || match["nom"] != "Alpha" {
		t.Errorf("below-threshold match = %v, want first result", match)
	}
}

func TestBestMatch_NoResults(t *testing.T) {
	if got := BestMatch(searchDoc(), "Super Quest"); got != nil {
		t.Errorf("empty list match = %v, want nil", got)
	}
	if got := BestMatch(&client.Document{}, "Super Quest"); got != nil {
		t.Errorf("empty document match = %v, want nil", got)
	}
	if got := BestMatch(nil, "Super Quest"); got != nil {
		t.Errorf("nil document match = %v, want nil", got)
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"super quest", "super quest", 1.0},
		{"super quest", "super quest iii", 2.0 / 3.0},
		{"super quest", "racing fever", 0},
		{"", "super quest", 0},
	}

	for _, tt := range tests {
		if got := nameSimilarity(tt.a, tt.b); got != tt.want {
			t.Errorf("nameSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
