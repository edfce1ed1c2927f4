package scraper

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"rasviz/backend/internal/models"
)

// ErrNoTable is returned when no selector matches a table
var ErrNoTable = errors.New("no table found")

// DefaultTableSelectors is the prioritized selector list for RAS pages
var DefaultTableSelectors = []string{"table.tablepress", "table"}

// FindTable returns the first table matched by the selectors, tried in order
func FindTable(doc *goquery.Selection, selectors []string) (*goquery.Selection, error) {
	for _, sel := range selectors {
		if t := doc.Find(sel).First(); t.Length() > 0 {
			return t, nil
		}
	}
	return nil, ErrNoTable
}

// ExtractTable reads headers and body rows. Headers come from thead th,
// else from the first row. Body rows come from tbody, else every row
// after the first. Empty rows are dropped.
func ExtractTable(table *goquery.Selection) *models.RawTable {
	raw := &models.RawTable{}

	if thead := table.Find("thead"); thead.Length() > 0 {
		thead.Find("th").Each(func(_ int, th *goquery.Selection) {
			raw.Headers = append(raw.Headers, cleanText(th))
		})
	} else {
		table.Find("tr").First().Find("th, td").Each(func(_ int, c *goquery.Selection) {
			raw.Headers = append(raw.Headers, cleanText(c))
		})
	}

	var rows *goquery.Selection
	if tbody := table.Find("tbody"); tbody.Length() > 0 {
		rows = tbody.Find("tr")
	} else {
		rows = table.Find("tr").Slice(1, goquery.ToEnd)
	}

	rows.Each(func(_ int, tr *goquery.Selection) {
		var row []models.Cell
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, ExtractCell(td))
		})
		if len(row) > 0 {
			raw.Rows = append(raw.Rows, row)
		}
	})

	return raw
}

// ExtractCell captures a cell, keeping the URL of its first link
func ExtractCell(td *goquery.Selection) models.Cell {
	text := cleanText(td)
	if href, ok := td.Find("a").First().Attr("href"); ok {
		return models.Linked(text, href)
	}
	return models.Plain(text)
}

// CommentDocuments parses every HTML comment whose text contains all of
// the given terms. Pro Football Reference ships most tables commented out.
func CommentDocuments(doc *goquery.Document, terms ...string) []*goquery.Document {
	var docs []*goquery.Document

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode && containsAll(n.Data, terms) {
			if d, err := goquery.NewDocumentFromReader(strings.NewReader(n.Data)); err == nil {
				docs = append(docs, d)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}

	return docs
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

func cleanText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
