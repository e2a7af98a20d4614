package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	types "github.com/rankforge/rankforge-backend/internal/domain"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

// SitemapMinerService pulls competitor sitemaps and turns content URL slugs
// into candidate keyword phrases.
type SitemapMinerService interface {
	Mine(ctx context.Context, competitorURLs []string) ([]types.DiscoveredKeyword, error)
}

type sitemapMinerService struct {
	log         *logger.Logger
	httpClient  *http.Client
	maxPerSite  int
	maxSitemaps int
}

func NewSitemapMinerService(baseLog *logger.Logger) SitemapMinerService {
	return &sitemapMinerService{
		log:         baseLog.With("service", "SitemapMinerService"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxPerSite:  200,
		maxSitemaps: 3,
	}
}

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

func (s *sitemapMinerService) Mine(ctx context.Context, competitorURLs []string) ([]types.DiscoveredKeyword, error) {
	// Fetch competitors concurrently; dedupe afterwards in input order so the
	// result is stable regardless of which fetch finishes first.
	perSite := make([][]string, len(competitorURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, comp := range competitorURLs {
		g.Go(func() error {
			locs, err := s.fetchLocs(gctx, strings.TrimSuffix(normalizeURL(comp), "/")+"/sitemap.xml", 0)
			if err != nil {
				// One unreachable competitor should not sink the whole stage.
				s.log.Warn("sitemap fetch failed", "competitor", comp, "error", err)
				return nil
			}
			perSite[i] = locs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []types.DiscoveredKeyword
	for _, locs := range perSite {
		count := 0
		for _, loc := range locs {
			if count >= s.maxPerSite {
				break
			}
			phrase := slugToPhrase(loc)
			if phrase == "" || seen[phrase] {
				continue
			}
			seen[phrase] = true
			out = append(out, types.DiscoveredKeyword{Term: phrase, Sources: []string{"sitemap"}})
			count++
		}
	}
	return out, nil
}

// fetchLocs resolves a sitemap URL, following one level of sitemap index.
func (s *sitemapMinerService) fetchLocs(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(raw, &set); err == nil && len(set.URLs) > 0 {
		locs := make([]string, 0, len(set.URLs))
		for _, u := range set.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs, nil
	}

	if depth > 0 {
		return nil, fmt.Errorf("nested sitemap index at %s", sitemapURL)
	}
	var index sitemapIndex
	if err := xml.Unmarshal(raw, &index); err != nil || len(index.Sitemaps) == 0 {
		return nil, fmt.Errorf("unrecognized sitemap format")
	}
	var locs []string
	for i, sm := range index.Sitemaps {
		if i >= s.maxSitemaps {
			break
		}
		child, err := s.fetchLocs(ctx, strings.TrimSpace(sm.Loc), depth+1)
		if err != nil {
			continue
		}
		locs = append(locs, child...)
	}
	return locs, nil
}

// slugToPhrase converts "/blog/best-running-shoes-2025" into
// "best running shoes 2025". Non-content paths read as empty.
func slugToPhrase(loc string) string {
	parsed, err := url.Parse(loc)
	if err != nil {
		return ""
	}
	slug := path.Base(strings.TrimSuffix(parsed.Path, "/"))
	slug = strings.TrimSuffix(slug, path.Ext(slug))
	if slug == "" || slug == "." || slug == "/" {
		return ""
	}
	phrase := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(slug, "-", " "), "_", " "))
	words := strings.Fields(phrase)
	if len(words) < 2 || len(words) > 8 {
		return ""
	}
	return strings.Join(words, " ")
}
