package domain

// SiteContent is the transient result of scraping a site's landing content.
// It feeds competitor discovery and seed keyword generation and is not
// persisted.
type SiteContent struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Headings    []string `json:"headings"`
	Text        string   `json:"text"`
}

// CompetitorSite is one competitor surfaced by grounded discovery.
type CompetitorSite struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
}
