// Package catalog defines the record types produced by one crawl cycle.
package catalog

import "time"

// TaxonomyKind identifies one classification axis enumerated by the site.
// The kind string doubles as the browse query name and as the id parameter
// key inside listing hrefs (e.g. "?module=browse&by=engine", "engine=12").
type TaxonomyKind string

// Taxonomy kinds known to the site. Each kind is its own id namespace.
const (
	KindEngine         TaxonomyKind = "engine"
	KindRating         TaxonomyKind = "rating"
	KindAdultTheme     TaxonomyKind = "adult"
	KindTransformation TaxonomyKind = "transformation"
	KindMultimedia     TaxonomyKind = "multimedia"
	KindAuthor         TaxonomyKind = "author"
)

// Kinds lists every taxonomy kind in a stable order.
func Kinds() []TaxonomyKind {
	return []TaxonomyKind{
		KindEngine,
		KindRating,
		KindAdultTheme,
		KindTransformation,
		KindMultimedia,
		KindAuthor,
	}
}

// Taxonomy maps a site-assigned id to its slug within one kind.
type Taxonomy map[int]string

// TaxonomySet holds all taxonomies fetched in one cycle.
type TaxonomySet map[TaxonomyKind]Taxonomy

// Download is one downloadable file attached to a game version.
type Download struct {
	Link   string `json:"link"`
	Report string `json:"report"`
	Note   string `json:"note,omitempty"`
	Dead   bool   `json:"dead,omitempty"`
}

// Review is one user review. Seq is 0-based and unique only within its game;
// reviews are ordered chronologically.
type Review struct {
	Seq     int       `json:"id"`
	Author  string    `json:"author"`
	Version string    `json:"version"`
	Date    time.Time `json:"date"`
	Text    string    `json:"text"`
}

// Section holds one free-text tab panel, both as plain text and raw markup.
type Section struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// Game is the structured record extracted from one detail page plus its
// reviews page. The whole graph is rebuilt every cycle; identity is the
// site-assigned id.
type Game struct {
	ID           int            `json:"id"`
	Title        string         `json:"title"`
	Authors      map[string]int `json:"authors"`
	Engine       string         `json:"game_engine"`
	Rating       string         `json:"content_rating"`
	Language     string         `json:"language"`
	ReleaseDate  *time.Time     `json:"release_date,omitempty"`
	LastUpdate   *time.Time     `json:"last_update,omitempty"`
	Version      string         `json:"version"`
	Development  string         `json:"development_stage"`
	Likes        int            `json:"likes"`
	Contest      string         `json:"contest,omitempty"`
	OrigPCGender string         `json:"orig_pc_gender,omitempty"`

	AdultThemes      map[string]int `json:"adult_themes,omitempty"`
	TFThemes         map[string]int `json:"transformation_themes,omitempty"`
	MultimediaThemes map[string]int `json:"multimedia_themes,omitempty"`

	Thread     string                `json:"thread,omitempty"`
	PlayOnline string                `json:"play_online,omitempty"`
	Versions   map[string][]Download `json:"versions,omitempty"`
	Sections   map[string]Section    `json:"sections,omitempty"`
	Reviews    []Review              `json:"reviews,omitempty"`
}
