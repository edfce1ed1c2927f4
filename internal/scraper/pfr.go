package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/client"
	"rasviz/backend/internal/models"
)

// ErrNoCombineData is returned when no requested year produced rows
var ErrNoCombineData = errors.New("no combine data collected")

var yearPattern = regexp.MustCompile(`(\d{4})`)

// RetryFetcher fetches documents and raw pages with bounded retries
type RetryFetcher interface {
	Fetcher
	GetWithRetry(ctx context.Context, pageURL string, attempts int, delay time.Duration) ([]byte, error)
}

// CombineOptions controls a combine scrape
type CombineOptions struct {
	Years      []int
	SampleSize int
	Seed       int64
	Accolades  bool
	Retries    int
	RetryDelay time.Duration
	Delay      time.Duration
}

// CombineScraper reads Pro Football Reference combine and player pages
type CombineScraper struct {
	fetcher RetryFetcher
	baseURL string
}

// NewCombineScraper creates a scraper rooted at the site base URL
func NewCombineScraper(fetcher RetryFetcher, baseURL string) *CombineScraper {
	return &CombineScraper{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/")}
}

// CombineURL returns the combine page for a year
func (s *CombineScraper) CombineURL(year int) string {
	return fmt.Sprintf("%s/draft/%d-combine.htm", s.baseURL, year)
}

// Scrape collects every requested year, optionally samples, adds accolades
// and computes the athletic score.
func (s *CombineScraper) Scrape(ctx context.Context, opts CombineOptions) ([]*models.CombineRecord, error) {
	var all []*models.CombineRecord

	for _, year := range opts.Years {
		records, err := s.ScrapeYear(ctx, year)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("year", year).Msg("Skipping combine year")
			continue
		}
		all = append(all, records...)
		log.Info().Int("year", year).Int("count", len(records)).Msg("Added combine players")
	}

	if len(all) == 0 {
		return nil, ErrNoCombineData
	}

	if opts.SampleSize > 0 && opts.SampleSize < len(all) {
		all = sample(all, opts.SampleSize, opts.Seed)
		log.Info().Int("count", len(all)).Msg("Sampled combine players")
	}

	if opts.Accolades {
		if err := s.addAccolades(ctx, all, opts); err != nil {
			return nil, err
		}
	}

	ScoreAthleticism(all)
	return all, nil
}

// ScrapeYear extracts the combine table for one year. The table is taken
// from an HTML comment when the page ships it commented out.
func (s *CombineScraper) ScrapeYear(ctx context.Context, year int) ([]*models.CombineRecord, error) {
	pageURL := s.CombineURL(year)
	log.Info().Str("url", pageURL).Msg("Scraping combine data")

	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table#combine").First()
	for _, d := range CommentDocuments(doc, "table", "combine") {
		if t := d.Find("table#combine").First(); t.Length() > 0 {
			table = t
			break
		}
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("combine %d: %w", year, ErrNoTable)
	}

	return s.parseCombineTable(table, year), nil
}

func (s *CombineScraper) parseCombineTable(table *goquery.Selection, year int) []*models.CombineRecord {
	var headers []string
	table.Find("thead tr").Last().Find("th, td").Each(func(_ int, c *goquery.Selection) {
		headers = append(headers, NormalizeCombineHeader(cleanText(c)))
	})

	var records []*models.CombineRecord
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.HasClass("thead") {
			return
		}

		rec := models.NewCombineRecord(year)
		if href, ok := tr.Find(`td[data-stat="player"] a`).First().Attr("href"); ok {
			u := s.baseURL + href
			rec.PlayerURL = &u
		}

		tr.Find("th, td").Each(func(i int, c *goquery.Selection) {
			if i < len(headers) {
				rec.Set(headers[i], cleanText(c))
			}
		})

		if rec.Player() == "" {
			return
		}
		if ht, ok := rec.Values["Ht"]; ok {
			rec.HeightInches = HeightInches(ht)
		}
		records = append(records, rec)
	})

	log.Info().Int("year", year).Int("count", len(records)).Msg("Extracted combine records")
	return records
}

// NormalizeCombineHeader makes header text usable as a column name
func NormalizeCombineHeader(h string) string {
	h = strings.ReplaceAll(h, "%", "Percentile")
	return strings.ReplaceAll(h, "/", "_")
}

// HeightInches converts "6-2" to 74. Nil for anything else.
func HeightInches(ht string) *float64 {
	feet, inches, ok := strings.Cut(strings.TrimSpace(ht), "-")
	if !ok {
		return nil
	}
	f, err1 := strconv.Atoi(feet)
	i, err2 := strconv.Atoi(inches)
	if err1 != nil || err2 != nil {
		return nil
	}
	v := float64(f*12 + i)
	return &v
}

func (s *CombineScraper) addAccolades(ctx context.Context, records []*models.CombineRecord, opts CombineOptions) error {
	success := 0
	for i, rec := range records {
		if rec.PlayerURL == nil {
			rec.Accolades = &models.Accolades{}
			continue
		}

		acc, err := s.FetchAccolades(ctx, *rec.PlayerURL, opts.Retries, opts.RetryDelay)
		if err == nil {
			success++
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		rec.Accolades = acc

		if err := client.Pause(ctx, opts.Delay); err != nil {
			return err
		}

		if (i+1)%5 == 0 || i == len(records)-1 {
			log.Info().
				Int("processed", i+1).
				Int("total", len(records)).
				Int("successful", success).
				Msg("Accolade progress")
		}
	}
	log.Info().Int("count", success).Msg("Accolades added")
	return nil
}

// FetchAccolades reads a player page with retries. On failure the default
// accolades are returned together with the error.
func (s *CombineScraper) FetchAccolades(ctx context.Context, playerURL string, retries int, delay time.Duration) (*models.Accolades, error) {
	body, err := s.fetcher.GetWithRetry(ctx, playerURL, retries, delay)
	if err != nil {
		log.Warn().Err(err).Str("url", playerURL).Msg("Failed to get accolades")
		return &models.Accolades{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return &models.Accolades{}, fmt.Errorf("failed to parse player page: %w", err)
	}
	return ParseAccolades(doc), nil
}

// ParseAccolades extracts honors, career AV and draft slot from a player page
func ParseAccolades(doc *goquery.Document) *models.Accolades {
	acc := &models.Accolades{}

	if doc.Find("div#all_honors").Length() > 0 {
		for _, honors := range CommentDocuments(doc, "honors") {
			honors.Find("li").Each(func(_ int, li *goquery.Selection) {
				text := li.Text()
				year := yearPattern.FindString(text)
				if strings.Contains(text, "Pro Bowl") {
					acc.ProBowlCount++
					if year != "" {
						acc.ProBowlYears = append(acc.ProBowlYears, year)
					}
				}
				if strings.Contains(text, "All-Pro") {
					acc.AllProCount++
					if year != "" {
						acc.AllProYears = append(acc.AllProYears, year)
					}
				}
			})
		}
	}

	av := doc.Find(`div#div_stats_ap_career tr.stat_total td[data-stat="av"]`).First()
	if av.Length() > 0 {
		if v, err := strconv.Atoi(cleanText(av)); err == nil {
			f := float64(v)
			acc.CareerAV = &f
		}
	}

	if row := doc.Find("div#div_draft_id tr").First(); row.Length() > 0 {
		if rc := row.Find(`td[data-stat="draft_round"]`).First(); rc.Length() > 0 {
			r := rc.Text()
			acc.DraftRound = &r
		}
		if pc := row.Find(`td[data-stat="draft_pick"]`).First(); pc.Length() > 0 {
			if v, err := strconv.Atoi(cleanText(pc)); err == nil && v >= 0 {
				f := float64(v)
				acc.DraftPick = &f
			}
		}
	}

	return acc
}

func sample(records []*models.CombineRecord, n int, seed int64) []*models.CombineRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*models.CombineRecord, 0, n)
	for _, idx := range rng.Perm(len(records))[:n] {
		out = append(out, records[idx])
	}
	return out
}
