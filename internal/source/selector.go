package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobradar/internal/fetch"
	"jobradar/internal/posting"
)

func init() {
	Register("selector", NewSelectorAdapter)
}

// Selectors maps the pieces of one listing card to CSS selectors. Title and
// Link are required; the rest degrade to empty fields.
type Selectors struct {
	Card        string `mapstructure:"card"`
	Title       string `mapstructure:"title"`
	Company     string `mapstructure:"company"`
	Location    string `mapstructure:"location"`
	Date        string `mapstructure:"date"`
	Description string `mapstructure:"description"`
	Link        string `mapstructure:"link"`
	// DateAttr names an attribute to prefer over the element text, typically
	// "datetime" on a <time> element.
	DateAttr string `mapstructure:"date_attr"`
}

// SelectorAdapter extracts cards with goquery against configured selectors.
// It covers every source that exposes its listings in server-rendered HTML.
type SelectorAdapter struct {
	cfg     Config
	fetcher fetch.PageFetcher
}

// NewSelectorAdapter validates cfg and builds a SelectorAdapter.
func NewSelectorAdapter(cfg Config, fetcher fetch.PageFetcher) (Adapter, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("source id is required")
	}
	if !strings.Contains(cfg.PageURL, "%d") {
		return nil, fmt.Errorf("source %s: page_url must contain a %%d page placeholder", cfg.ID)
	}
	s := cfg.Selectors
	if s.Card == "" || s.Title == "" || s.Link == "" {
		return nil, fmt.Errorf("source %s: card, title and link selectors are required", cfg.ID)
	}
	return &SelectorAdapter{cfg: cfg, fetcher: fetcher}, nil
}

// ID returns the source identifier.
func (a *SelectorAdapter) ID() string { return a.cfg.ID }

// FetchPage retrieves the numbered listing page through the coordinator.
func (a *SelectorAdapter) FetchPage(ctx context.Context, page int) (*Page, error) {
	pageURL := fmt.Sprintf(a.cfg.PageURL, page)
	resp, err := a.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s page %d: %w", a.cfg.ID, page, err)
	}
	return &Page{Number: page, URL: pageURL, Response: resp}, nil
}

// ExtractCards parses the page and returns one Raw per well-formed card.
// A malformed card is skipped, never fatal for the page.
func (a *SelectorAdapter) ExtractCards(page *Page) ([]posting.Raw, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Response.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s page %d: %w", a.cfg.ID, page.Number, err)
	}
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", page.URL, err)
	}

	sel := a.cfg.Selectors
	var raws []posting.Raw
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		raw := posting.Raw{
			SourceID:     a.cfg.ID,
			Title:        text(card, sel.Title),
			Company:      text(card, sel.Company),
			LocationText: text(card, sel.Location),
			Description:  text(card, sel.Description),
			DateText:     a.dateText(card),
			URL:          a.cardURL(card, base),
		}
		if raw.Title == "" || raw.URL == "" {
			// Not a usable card; skip it and keep the page.
			return
		}
		if raw.Description == "" {
			raw.Description = raw.Title
		}
		raws = append(raws, raw)
	})
	return raws, nil
}

func (a *SelectorAdapter) dateText(card *goquery.Selection) string {
	sel := a.cfg.Selectors
	if sel.Date == "" {
		return ""
	}
	el := card.Find(sel.Date).First()
	if sel.DateAttr != "" {
		if v, ok := el.Attr(sel.DateAttr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(el.Text())
}

func (a *SelectorAdapter) cardURL(card *goquery.Selection, base *url.URL) string {
	href, ok := card.Find(a.cfg.Selectors.Link).First().Attr("href")
	if !ok {
		// The card element itself may be the anchor.
		if href, ok = card.Attr("href"); !ok {
			return ""
		}
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func text(card *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(card.Find(selector).First().Text())
}
