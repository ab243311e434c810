package summary

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/ports"
)

// MockSummarizer produces canned-but-varied blurbs without calling any API.
// Selection is a hash of the input, so the same article always yields the
// same blurb and tests stay deterministic.
type MockSummarizer struct{}

var _ ports.Summarizer = (*MockSummarizer)(nil)

// NewMockSummarizer builds the development-mode summarizer.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize renders one of a fixed set of blurb templates for the article.
func (m *MockSummarizer) Summarize(ctx context.Context, article domain.Article) (string, error) {
	first := firstWord(article.Title)

	templates := []string{
		fmt.Sprintf("Big news in %s: this development could reshape the industry.", first),
		fmt.Sprintf("Analysis: %s. Key insights for professionals following this space.", article.Title),
		fmt.Sprintf("Breaking: %s. What this means for the future of technology.", article.Title),
		fmt.Sprintf("Update on %s: important implications for stakeholders.", first),
		fmt.Sprintf("Expert take: %s. Why this matters right now.", article.Title),
	}

	return templates[pick(article.Title+article.URL, len(templates))], nil
}

// Personalize prefixes the blurb with an interest-aware framing line.
func (m *MockSummarizer) Personalize(ctx context.Context, blurb string, interests []string) (string, error) {
	if len(interests) == 0 {
		return blurb, nil
	}

	leading := interests
	if len(leading) > 2 {
		leading = leading[:2]
	}
	joined := strings.Join(leading, " & ")

	templates := []string{
		fmt.Sprintf("Hey %s enthusiast! %s", joined, blurb),
		fmt.Sprintf("Given your interest in %s: %s", joined, blurb),
		fmt.Sprintf("Thought you'd like this as a %s follower: %s", interests[0], blurb),
		fmt.Sprintf("Relevant to your %s interests: %s", joined, blurb),
	}

	return templates[pick(blurb+joined, len(templates))], nil
}

func firstWord(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return "this space"
	}
	return fields[0]
}

func pick(seed string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return int(h.Sum32() % uint32(n))
}
