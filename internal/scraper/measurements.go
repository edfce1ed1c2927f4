package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/client"
	"rasviz/backend/internal/models"
)

// ErrNoLinks is returned when no row yields a profile or search URL
var ErrNoLinks = errors.New("no player links to process")

// Minimum Jaro-Winkler similarity accepted when no search result contains
// the player name verbatim
const fuzzyMatchThreshold = 0.9

var (
	linkPattern     = regexp.MustCompile(`'link'\s*:\s*'(https?://[^']+)'`)
	playerIDPattern = regexp.MustCompile(`PlayerID=(\d+)`)
)

// SourceColumns names the columns of the pro-bowler table to read
type SourceColumns struct {
	Name     string
	Position string
	ProBowls string
	Links    string
}

type target struct {
	row    models.Row
	name   string
	url    string
	search bool
}

// MeasurementScraper collects detailed measurement profiles per player
type MeasurementScraper struct {
	fetcher   Fetcher
	searchURL string
	delay     time.Duration
}

// NewMeasurementScraper creates a scraper. searchURL is the site root the
// ?s= query is appended to.
func NewMeasurementScraper(fetcher Fetcher, searchURL string, delay time.Duration) *MeasurementScraper {
	return &MeasurementScraper{fetcher: fetcher, searchURL: searchURL, delay: delay}
}

// Scrape visits every player's profile page, searching by name when the
// table carries no links. Players whose page cannot be found are skipped.
func (s *MeasurementScraper) Scrape(ctx context.Context, table *models.Table, cols SourceColumns) ([]*models.MeasurementProfile, error) {
	targets := s.targets(table, cols)
	if len(targets) == 0 {
		return nil, ErrNoLinks
	}

	log.Info().Int("count", len(targets)).Msg("Player links to process")

	var profiles []*models.MeasurementProfile
	for i, t := range targets {
		log.Info().
			Int("index", i+1).
			Int("total", len(targets)).
			Str("url", t.url).
			Msg("Processing player")

		profile, err := s.scrapeTarget(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return profiles, ctx.Err()
			}
			log.Warn().Err(err).Str("player", t.name).Msg("Skipping player")
		} else {
			if cols.Position != "" {
				profile.Position = t.row.Text(cols.Position)
			}
			if cols.ProBowls != "" {
				profile.ProBowls = t.row.Text(cols.ProBowls)
			}
			profiles = append(profiles, profile)
		}

		if err := client.Pause(ctx, s.delay); err != nil {
			return profiles, err
		}
	}

	return profiles, nil
}

// targets pairs each row with the URL to visit: the Links column when
// present, else linked names, else a site search by name.
func (s *MeasurementScraper) targets(table *models.Table, cols SourceColumns) []target {
	var out []target

	if cols.Links != "" && table.HasColumn(cols.Links) {
		for _, row := range table.Rows {
			if u := linkFromCell(row[cols.Links]); u != "" {
				out = append(out, target{row: row, name: row.Text(cols.Name), url: u})
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	for _, row := range table.Rows {
		if c := row[cols.Name]; c.IsLinked() {
			out = append(out, target{row: row, name: c.Text, url: c.URL})
		}
	}
	if len(out) > 0 {
		return out
	}

	log.Info().Msg("No links found in data, searching by player name")
	for _, row := range table.Rows {
		name := row.Text(cols.Name)
		if name == "" {
			continue
		}
		out = append(out, target{row: row, name: name, url: s.SearchURL(name), search: true})
	}
	return out
}

// SearchURL builds the site search URL for a player name
func (s *MeasurementScraper) SearchURL(name string) string {
	base := strings.TrimRight(s.searchURL, "/") + "/"
	return base + "?s=" + strings.ReplaceAll(name, " ", "+")
}

func linkFromCell(c models.Cell) string {
	if c.IsLinked() {
		return c.URL
	}
	if m := linkPattern.FindStringSubmatch(c.Text); m != nil {
		return m[1]
	}
	return ""
}

func (s *MeasurementScraper) scrapeTarget(ctx context.Context, t target) (*models.MeasurementProfile, error) {
	pageURL := t.url
	if t.search {
		found, err := s.findProfile(ctx, t.url, t.name)
		if err != nil {
			return nil, err
		}
		pageURL = found
	}

	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player page: %w", err)
	}

	page := ParseProfile(doc.Selection)
	profile := &models.MeasurementProfile{
		PlayerName:   t.name,
		RASScore:     page.RASScore,
		ProfileURL:   pageURL,
		Measurements: make(map[string]string, len(page.Measurements)),
	}
	if doc.Find("h1.entry-title").Length() > 0 {
		profile.PlayerName = page.Name
	}
	for label, value := range page.Measurements {
		profile.Measurements[MeasurementKey(label)] = value
	}
	if m := playerIDPattern.FindStringSubmatch(pageURL); m != nil {
		profile.PlayerID = m[1]
	}

	return profile, nil
}

// findProfile picks the search result whose title contains the player name,
// falling back to the closest title by Jaro-Winkler similarity.
func (s *MeasurementScraper) findProfile(ctx context.Context, searchURL, name string) (string, error) {
	doc, err := s.fetcher.GetDocument(ctx, searchURL)
	if err != nil {
		return "", fmt.Errorf("failed to search for player: %w", err)
	}

	results := doc.Find("h2.entry-title")
	if results.Length() == 0 {
		return "", errors.New("no search results found")
	}

	needle := strings.ToLower(name)
	var (
		exact     string
		best      string
		bestScore float64
	)
	results.EachWithBreak(func(_ int, h *goquery.Selection) bool {
		a := h.Find("a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		title := strings.ToLower(cleanText(a))
		if needle != "" && strings.Contains(title, needle) {
			exact = href
			return false
		}
		if score := matchr.JaroWinkler(needle, title, false); score > bestScore {
			best, bestScore = href, score
		}
		return true
	})

	if exact != "" {
		return resolve(searchURL, exact), nil
	}
	if best != "" && bestScore >= fuzzyMatchThreshold {
		log.Debug().
			Str("player", name).
			Float64("similarity", bestScore).
			Msg("Using closest search result")
		return resolve(searchURL, best), nil
	}
	return "", errors.New("could not find player's profile link in search results")
}

// MeasurementKey converts a page label into a column name
func MeasurementKey(label string) string {
	key := strings.ReplaceAll(label, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")
	return strings.ToLower(key)
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
