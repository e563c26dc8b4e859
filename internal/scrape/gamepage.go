package scrape

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tfgsapi/internal/catalog"
)

// ErrUnparseable marks a game whose record cannot be assembled at all.
// The only condition that earns it is an unresolvable author: every other
// field failure degrades to an unset field.
var ErrUnparseable = errors.New("unparseable game page")

// ParseGame assembles a complete record from a game's detail and reviews
// markup. authorTax is the already-fetched author taxonomy, used to resolve
// plain-text bylines.
func ParseGame(id int, detail, reviews []byte, authorTax catalog.Taxonomy, baseURL string) (catalog.Game, error) {
	game, err := parseDetailPage(id, detail, authorTax, baseURL)
	if err != nil {
		return catalog.Game{}, err
	}
	game.Reviews = ParseReviews(reviews)
	return game, nil
}

func parseDetailPage(id int, body []byte, authorTax catalog.Taxonomy, baseURL string) (catalog.Game, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return catalog.Game{}, fmt.Errorf("game %d: parse markup: %w", id, err)
	}

	game := catalog.Game{
		ID:       id,
		Title:    strings.TrimSpace(doc.Find(".viewgamecontenttitle").First().Text()),
		Versions: map[string][]catalog.Download{},
		Sections: map[string]catalog.Section{},
	}

	authors, err := parseAuthors(doc, authorTax)
	if err != nil {
		return catalog.Game{}, fmt.Errorf("game %d: %w", id, err)
	}
	game.Authors = authors

	parseInfoBox(doc, &game)
	parseDownloads(doc, &game, baseURL)
	parseSections(doc, &game)

	game.PlayOnline = doc.Find("#play form").First().AttrOr("action", "")

	return game, nil
}

// parseAuthors reads the byline. Hyperlinked bylines carry the author id in
// the link's u parameter; plain-text bylines are slugged and looked up in
// the author taxonomy. There is no other source of the id, so a miss makes
// the whole record unparseable.
func parseAuthors(doc *goquery.Document, authorTax catalog.Taxonomy) (map[string]int, error) {
	container := doc.Find(".viewgamecontentauthor").First()
	authors := map[string]int{}

	links := container.Find("a")
	if links.Length() > 0 {
		links.Each(func(_ int, a *goquery.Selection) {
			id, ok := hrefID(a.AttrOr("href", ""), "u")
			if !ok {
				return
			}
			authors[Slugify(a.Text())] = id
		})
	} else {
		byline := strings.TrimSpace(container.Text())
		byline = strings.TrimSpace(strings.TrimPrefix(byline, "by"))
		slug := Slugify(byline)
		for id, name := range authorTax {
			if name == slug {
				authors[slug] = id
				break
			}
		}
	}

	if len(authors) == 0 {
		return nil, fmt.Errorf("no resolvable author: %w", ErrUnparseable)
	}
	return authors, nil
}

func parseInfoBox(doc *goquery.Document, game *catalog.Game) {
	info := doc.Find(".viewgamesidecontainer > .viewgameanothercontainer").First()
	info.Find(".viewgameinfo").Each(func(_ int, box *goquery.Selection) {
		label := strings.TrimSpace(box.Find(".viewgameitemleft").Text())
		right := box.Find(".viewgameitemright")

		switch label {
		case "Engine":
			game.Engine = Slugify(right.Text())
		case "Rating":
			game.Rating = Slugify(right.Text())
		case "Language":
			game.Language = strings.TrimSpace(right.Text())
		case "Release Date":
			if t, ok := parseDate(detailDateLayouts, right.Text()); ok {
				game.ReleaseDate = &t
			}
		case "Last Update":
			if t, ok := parseDate(detailDateLayouts, right.Text()); ok {
				game.LastUpdate = &t
			}
		case "Version":
			game.Version = strings.TrimSpace(right.Text())
		case "Development":
			game.Development = strings.TrimSpace(right.Text())
		case "Likes":
			if n, err := strconv.Atoi(strings.TrimSpace(right.Text())); err == nil {
				game.Likes = n
			}
		case "Contest":
			if v := strings.TrimSpace(right.Text()); v != "None" {
				game.Contest = v
			}
		case "Orig PC Gender":
			game.OrigPCGender = strings.TrimSpace(right.Text())
		case "Adult Themes":
			game.AdultThemes = parseThemeLinks(right, string(catalog.KindAdultTheme))
		case "TF Themes":
			game.TFThemes = parseThemeLinks(right, string(catalog.KindTransformation))
		case "Multimedia":
			game.MultimediaThemes = parseThemeLinks(right, string(catalog.KindMultimedia))
		case "Discussion/Help":
			game.Thread = right.Find("a").First().AttrOr("href", "")
		}
	})
}

// parseThemeLinks maps each anchor's display name to the numeric id carried
// in its kind-specific query parameter.
func parseThemeLinks(right *goquery.Selection, param string) map[string]int {
	themes := map[string]int{}
	right.Find("a").Each(func(_ int, a *goquery.Selection) {
		id, ok := hrefID(a.AttrOr("href", ""), param)
		if !ok {
			return
		}
		themes[a.Text()] = id
	})
	if len(themes) == 0 {
		return nil
	}
	return themes
}

// parseDownloads walks the downloads section, a flat sequence mixing
// version headers and file blocks. A header updates the version cursor for
// subsequent blocks; blocks before any header attach to the game's
// top-level version.
func parseDownloads(doc *goquery.Document, game *catalog.Game, baseURL string) {
	version := ""
	doc.Find("#downloads").Children().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "center":
			version = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s.Text()), "Version:"))
		case "div":
			linkAnchor := s.Find(".dltext a").First()
			if linkAnchor.Length() == 0 {
				return
			}
			dl := catalog.Download{
				Link:   linkAnchor.AttrOr("href", ""),
				Report: resolveURL(baseURL, s.Find(".dlreportdeadlink a").First().AttrOr("href", "")),
				Note:   s.Find(".dlnotes img").First().AttrOr("title", ""),
				Dead:   s.Find(".dldeadlink a").Length() > 0,
			}
			key := version
			if key == "" {
				key = game.Version
			}
			game.Versions[key] = append(game.Versions[key], dl)
		}
	})
}

// parseSections captures the free-text tab panels keyed by the lowercased
// tab label, both as plain text and raw markup.
func parseSections(doc *goquery.Document, game *catalog.Game) {
	for i := 1; i <= 5; i++ {
		tab := doc.Find(fmt.Sprintf("#tabs-%d", i)).First()
		if tab.Length() == 0 {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(
			doc.Find(fmt.Sprintf("a[href='#tabs-%d']", i)).First().Text(),
		))
		if label == "" {
			continue
		}
		html, err := goquery.OuterHtml(tab)
		if err != nil {
			html = ""
		}
		game.Sections[label] = catalog.Section{
			Text: tab.Text(),
			HTML: html,
		}
	}
}
