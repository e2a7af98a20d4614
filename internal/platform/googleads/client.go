package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rankforge/rankforge-backend/internal/platform/envutil"
	"github.com/rankforge/rankforge-backend/internal/platform/logger"
)

// TermMetrics is one keyword's historical metrics as reported by the
// Keyword Planner endpoint.
type TermMetrics struct {
	Term               string
	AvgMonthlySearches int
	Competition        float64 // 0..100
	AvgCPCMicros       int64
}

func (m TermMetrics) CPC() float64 { return float64(m.AvgCPCMicros) / 1_000_000 }

type Client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	devToken   string
	customerID string
}

// NewClientFromEnv returns (nil, false) when no developer token is
// configured; callers fall back to heuristic estimation in that case.
func NewClientFromEnv(log *logger.Logger) (*Client, bool) {
	token := envutil.Str("GOOGLE_ADS_DEVELOPER_TOKEN", "")
	if token == "" {
		return nil, false
	}
	return &Client{
		log:        log.With("client", "GoogleAdsClient"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    envutil.Str("GOOGLE_ADS_BASE_URL", "https://googleads.googleapis.com/v17"),
		devToken:   token,
		customerID: envutil.Str("GOOGLE_ADS_CUSTOMER_ID", ""),
	}, true
}

type metricsRequest struct {
	Keywords []string `json:"keywords"`
}

type metricsResponse struct {
	Results []struct {
		Text           string `json:"text"`
		KeywordMetrics struct {
			AvgMonthlySearches int     `json:"avgMonthlySearches"`
			CompetitionIndex   float64 `json:"competitionIndex"`
			AverageCPCMicros   int64   `json:"averageCpcMicros"`
		} `json:"keywordMetrics"`
	} `json:"results"`
}

// KeywordMetrics fetches historical metrics for the given terms.
func (c *Client) KeywordMetrics(ctx context.Context, terms []string) ([]TermMetrics, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(metricsRequest{Keywords: terms})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/customers/%s:generateKeywordHistoricalMetrics", c.baseURL, c.customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("developer-token", c.devToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google ads request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google ads read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google ads status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out metricsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("google ads decode: %w", err)
	}
	metrics := make([]TermMetrics, 0, len(out.Results))
	for _, res := range out.Results {
		metrics = append(metrics, TermMetrics{
			Term:               res.Text,
			AvgMonthlySearches: res.KeywordMetrics.AvgMonthlySearches,
			Competition:        res.KeywordMetrics.CompetitionIndex,
			AvgCPCMicros:       res.KeywordMetrics.AverageCPCMicros,
		})
	}
	return metrics, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
