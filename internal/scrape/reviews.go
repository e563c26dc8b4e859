package scrape

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tfgsapi/internal/catalog"
)

var reviewHeaderRe = regexp.MustCompile(`^Version reviewed: (.+) on (.*)$`)

// ParseReviews extracts reviews from a game's reviews page. The page lists
// reviews newest-first; output is chronological, with 0-based sequence ids
// assigned while walking the reversed block list. Malformed blocks are
// discarded without affecting the rest.
func ParseReviews(body []byte) []catalog.Review {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var blocks []string
	doc.Find(".reviewcontent").Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})

	var reviews []catalog.Review
	for i := 0; i < len(blocks); i++ {
		review, ok := parseReviewBlock(blocks[len(blocks)-1-i])
		if !ok {
			continue
		}
		review.Seq = i
		reviews = append(reviews, review)
	}
	return reviews
}

func parseReviewBlock(text string) (catalog.Review, bool) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) < 3 {
		return catalog.Review{}, false
	}

	idx := strings.Index(lines[0], "Review by")
	if idx < 0 {
		return catalog.Review{}, false
	}
	author := strings.TrimSpace(lines[0][idx+len("Review by"):])

	m := reviewHeaderRe.FindStringSubmatch(lines[1])
	if m == nil {
		return catalog.Review{}, false
	}
	date, ok := parseDate(reviewDateLayouts, m[2])
	if !ok {
		return catalog.Review{}, false
	}

	body := strings.Join(lines[2:], "\n")
	if body == "" {
		return catalog.Review{}, false
	}

	return catalog.Review{
		Author:  author,
		Version: m[1],
		Date:    date,
		Text:    body,
	}, true
}
