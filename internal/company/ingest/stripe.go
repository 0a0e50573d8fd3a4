package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const stripeAuthorizeURL = "https://connect.stripe.com/oauth/authorize"

// StripeAPI is the part of Stripe the provider calls.
type StripeAPI interface {
	// ExchangeCode completes Stripe Connect OAuth and returns the connected
	// account id.
	ExchangeCode(ctx context.Context, code string) (string, error)
	// ListCharges lists the connected account's charges created since.
	ListCharges(ctx context.Context, accountID string, since time.Time) ([]*stripe.Charge, error)
}

type stripeClient struct {
	sc *client.API
}

// NewStripeAPI returns a StripeAPI over stripe-go. Nil backends use
// Stripe's production endpoints.
func NewStripeAPI(secretKey string, backends *stripe.Backends) StripeAPI {
	sc := &client.API{}
	sc.Init(secretKey, backends)
	return &stripeClient{sc: sc}
}

func (s *stripeClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	params := &stripe.OAuthTokenParams{
		GrantType: stripe.String("authorization_code"),
		Code:      stripe.String(code),
	}
	params.Context = ctx
	token, err := s.sc.OAuth.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: stripe oauth: %v", e.ErrProviderAPI, err)
	}
	return token.StripeUserID, nil
}

func (s *stripeClient) ListCharges(ctx context.Context, accountID string, since time.Time) ([]*stripe.Charge, error) {
	params := &stripe.ChargeListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	params.SetStripeAccount(accountID)

	var charges []*stripe.Charge
	iter := s.sc.Charges.List(params)
	for iter.Next() {
		charges = append(charges, iter.Charge())
	}
	if err := iter.Err(); err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return nil, &StatusError{Endpoint: "charges", Status: se.HTTPStatusCode, Body: se.Msg}
		}
		return nil, fmt.Errorf("%w: stripe charges: %v", e.ErrProviderAPI, err)
	}
	return charges, nil
}

// StripeProvider reports monthly revenue of a connected Stripe account.
type StripeProvider struct {
	api      StripeAPI
	clientID string
}

func NewStripeProvider(api StripeAPI, clientID string) *StripeProvider {
	return &StripeProvider{api: api, clientID: clientID}
}

func (p *StripeProvider) Source() models.MetricSource { return models.SourceStripe }

func (p *StripeProvider) AuthorizeURL(redirectURI, state string) string {
	params := url.Values{}
	params.Add("response_type", "code")
	params.Add("client_id", p.clientID)
	params.Add("scope", "read_only")
	params.Add("redirect_uri", redirectURI)
	params.Add("state", state)
	return stripeAuthorizeURL + "?" + params.Encode()
}

func (p *StripeProvider) Exchange(ctx context.Context, code, _ string) (*Connection, error) {
	accountID, err := p.api.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		return nil, fmt.Errorf("%w: stripe returned no account", e.ErrProviderAPI)
	}
	return &Connection{AccountID: accountID}, nil
}

// FetchMonthly sums captured, unrefunded charge amounts per month. Amounts
// are in the currency's minor unit and reported in major units.
func (p *StripeProvider) FetchMonthly(ctx context.Context, conn *Connection, months []string) ([]models.Metric, error) {
	if len(months) == 0 {
		return nil, nil
	}
	since, err := monthStart(months[0])
	if err != nil {
		return nil, err
	}
	charges, err := p.api.ListCharges(ctx, conn.AccountID, since)
	if err != nil {
		return nil, err
	}

	cents := make(map[string]int64, len(months))
	for _, ch := range charges {
		if ch == nil || ch.Status != stripe.ChargeStatusSucceeded || !ch.Paid {
			continue
		}
		key := time.Unix(ch.Created, 0).UTC().Format("2006-01")
		cents[key] += ch.Amount - ch.AmountRefunded
	}

	out := make([]models.Metric, 0, len(months))
	for _, m := range months {
		revenue := float64(cents[m]) / 100
		out = append(out, models.Metric{Month: m, Revenue: &revenue, Source: models.SourceStripe})
	}
	return out, nil
}
