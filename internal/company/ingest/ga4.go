package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
)

const (
	googleAuthorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL     = "https://oauth2.googleapis.com/token"
	ga4AdminURL        = "https://analyticsadmin.googleapis.com"
	ga4DataURL         = "https://analyticsdata.googleapis.com"
	ga4Scope           = "https://www.googleapis.com/auth/analytics.readonly"
)

// StatusError is a non-2xx answer from a provider API.
type StatusError struct {
	Endpoint string
	Status   int
	Body     string
}

func (s *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", s.Endpoint, s.Status, s.Body)
}

func (s *StatusError) Unwrap() error { return e.ErrProviderAPI }

// Retryable reports whether repeating the call may succeed.
func (s *StatusError) Retryable() bool {
	return s.Status == http.StatusTooManyRequests || s.Status >= http.StatusInternalServerError
}

// GA4Config holds the Google OAuth client and the API base URLs.
type GA4Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	AdminURL     string
	DataURL      string
}

// GA4Provider reports monthly active users of the first GA4 property the
// connected Google account can see.
type GA4Provider struct {
	cfg    GA4Config
	client *http.Client
}

func NewGA4Provider(cfg GA4Config, client *http.Client) *GA4Provider {
	if cfg.TokenURL == "" {
		cfg.TokenURL = googleTokenURL
	}
	if cfg.AdminURL == "" {
		cfg.AdminURL = ga4AdminURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = ga4DataURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GA4Provider{cfg: cfg, client: client}
}

func (p *GA4Provider) Source() models.MetricSource { return models.SourceGA4 }

func (p *GA4Provider) AuthorizeURL(redirectURI, state string) string {
	params := url.Values{}
	params.Add("client_id", p.cfg.ClientID)
	params.Add("redirect_uri", redirectURI)
	params.Add("response_type", "code")
	params.Add("scope", ga4Scope)
	params.Add("access_type", "offline")
	params.Add("state", state)
	return googleAuthorizeURL + "?" + params.Encode()
}

// Exchange trades the code for an access token and resolves the property
// to report on.
func (p *GA4Provider) Exchange(ctx context.Context, code, redirectURI string) (*Connection, error) {
	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", p.cfg.ClientID)
	data.Set("client_secret", p.cfg.ClientSecret)
	data.Set("redirect_uri", redirectURI)
	data.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.do(req, "token", &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: google returned no access token", e.ErrProviderAPI)
	}

	property, err := p.firstProperty(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, err
	}
	return &Connection{AccessToken: tokenResp.AccessToken, AccountID: property}, nil
}

func (p *GA4Provider) firstProperty(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.AdminURL+"/v1beta/accountSummaries", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var summaries struct {
		AccountSummaries []struct {
			PropertySummaries []struct {
				Property string `json:"property"`
			} `json:"propertySummaries"`
		} `json:"accountSummaries"`
	}
	if err := p.do(req, "accountSummaries", &summaries); err != nil {
		return "", err
	}
	for _, a := range summaries.AccountSummaries {
		for _, ps := range a.PropertySummaries {
			if ps.Property != "" {
				return ps.Property, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no GA4 property on this account", e.ErrProviderAPI)
}

type ga4Report struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

// FetchMonthly runs an activeUsers by yearMonth report. Months the report
// leaves out are returned with a zero count.
func (p *GA4Provider) FetchMonthly(ctx context.Context, conn *Connection, months []string) ([]models.Metric, error) {
	if len(months) == 0 {
		return nil, nil
	}
	start, err := monthStart(months[0])
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{
		"dateRanges": []map[string]string{{"startDate": start.Format("2006-01-02"), "endDate": "today"}},
		"dimensions": []map[string]string{{"name": "yearMonth"}},
		"metrics":    []map[string]string{{"name": "activeUsers"}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.DataURL+"/v1beta/"+conn.AccountID+":runReport", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+conn.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	var report ga4Report
	if err := p.do(req, "runReport", &report); err != nil {
		return nil, err
	}

	users := make(map[string]int64, len(report.Rows))
	for _, row := range report.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
			continue
		}
		ym := row.DimensionValues[0].Value
		if len(ym) != 6 {
			continue
		}
		n, err := strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		if err != nil {
			continue
		}
		users[ym[:4]+"-"+ym[4:]] += n
	}

	out := make([]models.Metric, 0, len(months))
	for _, m := range months {
		mau := users[m]
		out = append(out, models.Metric{Month: m, MAU: &mau, Source: models.SourceGA4})
	}
	return out, nil
}

func (p *GA4Provider) do(req *http.Request, endpoint string, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", e.ErrProviderAPI, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", e.ErrProviderAPI, endpoint, err)
	}
	return nil
}
