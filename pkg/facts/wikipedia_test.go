package facts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wanderpod/pkg/cache"
	"wanderpod/pkg/model"
	"wanderpod/pkg/request"
	"wanderpod/pkg/tracker"
)

const sampleExtract = `<p>Lisbon is the capital of Portugal. It is one of the oldest cities in western Europe.</p>
<h2>History</h2>
<p>The 1755 earthquake destroyed much of the city. Rebuilding introduced some of the first earthquake-resistant construction in the world.</p>
<h2>Culture</h2>
<p>Fado music is closely associated with the city and was born in its oldest quarters.</p>
<h2>References</h2>
<p>Some citation list text that should be skipped entirely.</p>`

func wikiServer(t *testing.T, extract string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"query": map[string]any{
				"pages": map[string]any{
					"123": map[string]any{
						"title":   "Lisbon",
						"extract": extract,
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newSource(t *testing.T, svrURL string) *WikipediaSource {
	t.Helper()
	s := NewWikipediaSource(request.New(cache.NullCache{}, tracker.New()))
	s.APIEndpoint = svrURL
	return s
}

func TestFactsBucketsBySection(t *testing.T) {
	svr := wikiServer(t, sampleExtract)
	defer svr.Close()

	bag, err := newSource(t, svr.URL).Facts(context.Background(), "Lisbon")
	if err != nil {
		t.Fatalf("Facts failed: %v", err)
	}

	if bag.LocationName != "Lisbon" {
		t.Errorf("location = %q", bag.LocationName)
	}
	if len(bag.Facts[model.CategorySummary]) != 2 {
		t.Errorf("expected 2 summary facts, got %d", len(bag.Facts[model.CategorySummary]))
	}
	if len(bag.Facts[model.CategoryHistory]) != 2 {
		t.Errorf("expected 2 history facts, got %d", len(bag.Facts[model.CategoryHistory]))
	}
	if len(bag.Facts[model.CategoryCulture]) != 1 {
		t.Errorf("expected 1 culture fact, got %d", len(bag.Facts[model.CategoryCulture]))
	}

	// References section must be dropped
	for _, f := range bag.All() {
		if strings.Contains(f.Text, "citation list") {
			t.Errorf("references section leaked into facts: %q", f.Text)
		}
	}
}

func TestFactsEmptyExtract(t *testing.T) {
	svr := wikiServer(t, "")
	defer svr.Close()

	_, err := newSource(t, svr.URL).Facts(context.Background(), "Nowhereville")
	if !errors.Is(err, ErrContentUnavailable) {
		t.Errorf("expected ErrContentUnavailable, got %v", err)
	}
}

func TestEstimateNovelty(t *testing.T) {
	plain := estimateNovelty("The city has a river.")
	loaded := estimateNovelty("It is the only city with the oldest operating tram line, opened in 1873.")
	if loaded <= plain {
		t.Errorf("superlative sentence should score higher: plain=%v loaded=%v", plain, loaded)
	}
	if loaded > 5 {
		t.Errorf("novelty must cap at 5, got %v", loaded)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		heading string
		want    model.FactCategory
	}{
		{"History", model.CategoryHistory},
		{"Etymology", model.CategoryHistory},
		{"Culture and arts", model.CategoryCulture},
		{"Geography", model.CategoryGeography},
		{"Climate", model.CategoryGeography},
		{"Notable people", model.CategoryAnecdotes},
		{"References", ""},
		{"See also", ""},
	}
	for _, tt := range tests {
		if got := categorize(tt.heading); got != tt.want {
			t.Errorf("categorize(%q) = %q, want %q", tt.heading, got, tt.want)
		}
	}
}

func TestExtractSectionsStripsCitations(t *testing.T) {
	in := `<p>Lisbon is old.<sup class="reference">[1]</sup></p><h2>History</h2><p>Earthquake happened.</p>`
	lead, sections, err := ExtractSections(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(lead) != 1 || lead[0] != "Lisbon is old." {
		t.Errorf("lead = %v", lead)
	}
	if len(sections) != 1 || sections[0].Heading != "History" {
		t.Errorf("sections = %v", sections)
	}
}
