package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

const scraperUserAgent = "Mozilla/5.0 (compatible; RankForgeBot/1.0)"

// SiteScraperService fetches and condenses a site's landing content.
type SiteScraperService interface {
	ScrapeDomain(ctx context.Context, domain string) (*types.SiteContent, error)
}

type siteScraperService struct {
	log        *logger.Logger
	httpClient *http.Client
	maxChars   int
}

func NewSiteScraperService(baseLog *logger.Logger) SiteScraperService {
	return &siteScraperService{
		log:        baseLog.With("service", "SiteScraperService"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxChars:   8000,
	}
}

func (s *siteScraperService) ScrapeDomain(ctx context.Context, domain string) (*types.SiteContent, error) {
	url := normalizeURL(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	content := &types.SiteContent{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		content.Description = strings.TrimSpace(desc)
	}
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		heading := strings.TrimSpace(sel.Text())
		if heading != "" && len(content.Headings) < 40 {
			content.Headings = append(content.Headings, heading)
		}
	})

	var b strings.Builder
	doc.Find("p, li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return true
		}
		b.WriteString(text)
		b.WriteString("\n")
		return b.Len() < s.maxChars
	})
	content.Text = strings.TrimSpace(b.String())

	s.log.Debug("scraped domain", "url", url, "headings", len(content.Headings), "chars", len(content.Text))
	return content, nil
}

func normalizeURL(domain string) string {
	domain = strings.TrimSpace(domain)
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
