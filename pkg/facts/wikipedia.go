package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"wanderpod/pkg/model"
	"wanderpod/pkg/request"
)

// WikipediaSource implements Source using the Wikipedia API.
type WikipediaSource struct {
	request     *request.Client
	Lang        string
	APIEndpoint string // Optional override for testing
}

// NewWikipediaSource creates a new Wikipedia-backed fact source.
func NewWikipediaSource(r *request.Client) *WikipediaSource {
	return &WikipediaSource{request: r, Lang: "en"}
}

func (s *WikipediaSource) endpoint() string {
	if s.APIEndpoint != "" {
		return s.APIEndpoint
	}
	lang := s.Lang
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
}

// Facts fetches the article for the location and buckets its prose
// into fact categories by section heading.
func (s *WikipediaSource) Facts(ctx context.Context, location string) (*model.FactBag, error) {
	u, _ := url.Parse(s.endpoint())
	q := u.Query()
	q.Add("action", "query")
	q.Add("prop", "extracts")
	q.Add("titles", location)
	q.Add("format", "json")
	q.Add("redirects", "1")
	u.RawQuery = q.Encode()

	cacheKey := "wp:extract:" + strings.ToLower(location)
	body, err := s.request.Get(ctx, u.String(), cacheKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	var apiResp struct {
		Query struct {
			Pages map[string]struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
				Missing string `json:"missing,omitempty"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	var extract, title string
	for _, page := range apiResp.Query.Pages {
		extract = page.Extract
		title = page.Title
		break
	}
	if strings.TrimSpace(extract) == "" {
		return nil, fmt.Errorf("%w: %s", ErrContentUnavailable, location)
	}

	lead, sections, err := ExtractSections(strings.NewReader(extract))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article html: %w", err)
	}

	bag := &model.FactBag{
		LocationName: title,
		Facts:        make(map[model.FactCategory][]model.Fact),
	}

	for _, p := range lead {
		appendFacts(bag, model.CategorySummary, p)
	}
	for _, sec := range sections {
		cat := categorize(sec.Heading)
		if cat == "" {
			continue // Skip references, external links etc.
		}
		for _, p := range sec.Paragraphs {
			appendFacts(bag, cat, p)
		}
	}

	if bag.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrContentUnavailable, location)
	}
	return bag, nil
}

// appendFacts splits a paragraph into sentence-level facts.
func appendFacts(bag *model.FactBag, cat model.FactCategory, paragraph string) {
	for _, sentence := range model.Sentences(paragraph) {
		if len(strings.Fields(sentence)) < 4 {
			continue // Too short to carry a fact
		}
		bag.Facts[cat] = append(bag.Facts[cat], model.Fact{
			Text:    sentence,
			Novelty: estimateNovelty(sentence),
		})
	}
}

// categorize maps a section heading to a fact category. Unmapped
// structural sections (references, see also) return "".
func categorize(heading string) model.FactCategory {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "histor"), strings.Contains(h, "etymolog"), strings.Contains(h, "origin"):
		return model.CategoryHistory
	case strings.Contains(h, "cultur"), strings.Contains(h, "art"), strings.Contains(h, "music"),
		strings.Contains(h, "cuisine"), strings.Contains(h, "sport"), strings.Contains(h, "tradition"):
		return model.CategoryCulture
	case strings.Contains(h, "geograph"), strings.Contains(h, "climate"), strings.Contains(h, "landscape"),
		strings.Contains(h, "location"), strings.Contains(h, "topograph"):
		return model.CategoryGeography
	case strings.Contains(h, "reference"), strings.Contains(h, "external link"),
		strings.Contains(h, "see also"), strings.Contains(h, "bibliograph"),
		strings.Contains(h, "further reading"), strings.Contains(h, "notes"):
		return ""
	default:
		return model.CategoryAnecdotes
	}
}

// estimateNovelty scores how unusual a sentence looks. Numbers,
// superlatives and rarity markers push the score up.
func estimateNovelty(sentence string) float64 {
	s := strings.ToLower(sentence)
	score := 1.0

	for _, marker := range []string{"only", "first", "last", "oldest", "largest", "smallest",
		"unique", "rare", "unusual", "famous", "legend", "secret", "hidden", "surprising"} {
		if strings.Contains(s, marker) {
			score += 1.0
		}
	}
	if strings.ContainsAny(s, "0123456789") {
		score += 0.5
	}
	if score > 5 {
		score = 5
	}
	return score
}
