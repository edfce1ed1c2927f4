package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/client"
	"rasviz/backend/internal/models"
)

// Fetcher is the subset of the page client the scrapers use
type Fetcher interface {
	GetDocument(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// Profile is what a RAS player page reports
type Profile struct {
	Name         string
	RASScore     string
	Labels       []string
	Measurements map[string]string
}

// EnrichedPlayer is one pro-bowler row joined with its profile page
type EnrichedPlayer struct {
	Player       string
	ProfileURL   string
	Position     string
	Draft        string
	College      string
	ProBowls     string
	RAS          string
	Labels       []string
	Measurements map[string]string
}

// Flatten writes list columns first, then measurement labels in page order
func (p *EnrichedPlayer) Flatten() models.Object {
	obj := models.Object{
		{Key: "Player", Value: p.Player},
		{Key: "Profile_URL", Value: p.ProfileURL},
		{Key: "Position", Value: p.Position},
		{Key: "Draft", Value: p.Draft},
		{Key: "College", Value: p.College},
		{Key: "Pro_Bowls", Value: p.ProBowls},
		{Key: "RAS", Value: p.RAS},
	}
	for _, label := range p.Labels {
		obj = append(obj, models.Field{Key: label, Value: p.Measurements[label]})
	}
	return obj
}

// RASScraper reads the ras.football pro-bowler list and player pages
type RASScraper struct {
	fetcher   Fetcher
	listURL   string
	selectors []string
	delay     time.Duration
}

// NewRASScraper creates a scraper for the pro-bowler list at listURL
func NewRASScraper(fetcher Fetcher, listURL string, delay time.Duration) *RASScraper {
	return &RASScraper{
		fetcher:   fetcher,
		listURL:   listURL,
		selectors: DefaultTableSelectors,
		delay:     delay,
	}
}

// ScrapeProBowlers fetches the list page and extracts its table
func (s *RASScraper) ScrapeProBowlers(ctx context.Context) (*models.RawTable, error) {
	log.Info().Str("url", s.listURL).Msg("Fetching pro-bowler list")

	doc, err := s.fetcher.GetDocument(ctx, s.listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pro-bowler list: %w", err)
	}

	table, err := FindTable(doc.Selection, s.selectors)
	if err != nil {
		return nil, fmt.Errorf("pro-bowler list: %w", err)
	}

	raw := ExtractTable(table)
	if len(raw.Rows) == 0 {
		return nil, fmt.Errorf("pro-bowler list: %w", ErrNoTable)
	}

	width := raw.Width()
	if len(raw.Headers) != width {
		log.Warn().
			Int("headers", len(raw.Headers)).
			Int("columns", width).
			Msg("Header count does not match column count, using positional columns")
	}

	log.Info().
		Int("rows", len(raw.Rows)).
		Strs("headers", raw.Headers).
		Msg("Pro-bowler table extracted")

	return raw, nil
}

// FetchProfile reads a player page: title, big RAS score and the
// label/value measurement pairs.
func (s *RASScraper) FetchProfile(ctx context.Context, profileURL string) (*Profile, error) {
	doc, err := s.fetcher.GetDocument(ctx, profileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return ParseProfile(doc.Selection), nil
}

// ParseProfile extracts a Profile from a player page
func ParseProfile(doc *goquery.Selection) *Profile {
	p := &Profile{Name: "Unknown Player", Measurements: make(map[string]string)}

	if h := doc.Find("h1.entry-title").First(); h.Length() > 0 {
		p.Name = cleanText(h)
	}
	if r := doc.Find("div.ras-score-big").First(); r.Length() > 0 {
		p.RASScore = cleanText(r)
	}

	doc.Find("div.measurement").Each(func(_ int, m *goquery.Selection) {
		label := m.Find("div.label").First()
		value := m.Find("div.value").First()
		if label.Length() == 0 || value.Length() == 0 {
			return
		}
		key := cleanText(label)
		if _, seen := p.Measurements[key]; !seen {
			p.Labels = append(p.Labels, key)
		}
		p.Measurements[key] = cleanText(value)
	})

	return p
}

// EnrichProBowlers follows the Name link of every row to its profile page.
// Rows without a linked name are skipped. A failed profile fetch keeps the
// row without measurements.
func (s *RASScraper) EnrichProBowlers(ctx context.Context, table *models.Table) ([]*EnrichedPlayer, error) {
	var players []*EnrichedPlayer

	for i, row := range table.Rows {
		name := row["Name"]
		if !name.IsLinked() {
			continue
		}

		log.Info().
			Str("player", name.Text).
			Int("index", i+1).
			Int("total", table.Len()).
			Msg("Fetching player profile")

		if err := client.Pause(ctx, s.delay); err != nil {
			return players, err
		}

		player := &EnrichedPlayer{
			Player:       name.Text,
			ProfileURL:   name.URL,
			Position:     row.Text("Pos"),
			Draft:        row.Text("Draft Year"),
			College:      row.Text("College"),
			ProBowls:     row.Text("ProBowls"),
			RAS:          row.Text("RAS"),
			Measurements: make(map[string]string),
		}

		profile, err := s.FetchProfile(ctx, name.URL)
		if err != nil {
			if ctx.Err() != nil {
				return players, ctx.Err()
			}
			log.Warn().Err(err).Str("player", name.Text).Msg("Profile fetch failed, keeping list data only")
		} else {
			for _, label := range profile.Labels {
				key := strings.ReplaceAll(label, " ", "_")
				if _, seen := player.Measurements[key]; !seen {
					player.Labels = append(player.Labels, key)
				}
				player.Measurements[key] = profile.Measurements[label]
			}
		}

		players = append(players, player)
	}

	log.Info().Int("count", len(players)).Msg("Pro-bowler profiles collected")
	return players, nil
}
