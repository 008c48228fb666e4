// Package backend talks to the indexing REST service: yield figures,
// points, terms-of-use state and whitelist checks that never touch the
// chain.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ltvlabs/vaultdesk/pkg/retrier"
)

const requestTimeout = 5 * time.Second

// Client is a thin typed wrapper over the indexing service's REST API.
// Reads retry transient failures; writes are sent once.
type Client struct {
	baseURL string
	http    *http.Client
	retry   *retrier.Retrier
}

// New creates a client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		retry:   retrier.New(retrier.WithInitialInterval(200*time.Millisecond), retrier.WithMaxRetries(2)),
	}
}

// TimedAPY returns the vault's annualized yield over both reporting
// windows as display percentages: the service reports fractions, the UI
// shows percent.
func (c *Client) TimedAPY(ctx context.Context, vault common.Address) (thirtyDay, sevenDay decimal.Decimal, err error) {
	var out struct {
		ThirtyDay decimal.Decimal `json:"30d_apy"`
		SevenDay  decimal.Decimal `json:"7d_apy"`
	}
	if err := c.getJSON(ctx, "/timed-apy/"+vault.Hex(), &out); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	hundred := decimal.NewFromInt(100)
	return out.ThirtyDay.Mul(hundred), out.SevenDay.Mul(hundred), nil
}

// PointsRate returns the vault's points accrual rate per day.
func (c *Client) PointsRate(ctx context.Context, vault common.Address) (decimal.Decimal, error) {
	var out struct {
		PointsPerDay decimal.Decimal `json:"pointsPerDay"`
	}
	if err := c.getJSON(ctx, "/points-rate/"+vault.Hex(), &out); err != nil {
		return decimal.Zero, err
	}
	return out.PointsPerDay, nil
}

// Points returns the user's accumulated points. A 404 means the user has
// never earned any and reads as zero, not as a failure.
func (c *Client) Points(ctx context.Context, user common.Address) (decimal.Decimal, error) {
	body, status, err := c.get(ctx, "/points/"+user.Hex())
	if err != nil {
		return decimal.Zero, err
	}
	if status == http.StatusNotFound {
		return decimal.Zero, nil
	}
	if status != http.StatusOK {
		return decimal.Zero, errors.Errorf("points: unexpected status %d", status)
	}

	// the endpoint has served both a bare number and an object over time
	var bare decimal.Decimal
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	var wrapped struct {
		Points decimal.Decimal `json:"points"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode points")
	}
	return wrapped.Points, nil
}

// IsLiquidityProvider reports whether the user holds an LP position that
// earns boosted points.
func (c *Client) IsLiquidityProvider(ctx context.Context, user common.Address) (bool, error) {
	var flag bool
	if err := c.getJSON(ctx, "/is-liquidity-provider/"+user.Hex(), &flag); err != nil {
		return false, err
	}
	return flag, nil
}

// TermsOfUseText returns the current terms document.
func (c *Client) TermsOfUseText(ctx context.Context) (string, error) {
	body, status, err := c.get(ctx, "/terms-of-use-text")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", errors.Errorf("terms text: unexpected status %d", status)
	}
	return string(body), nil
}

// HasAcceptedTerms reports whether the user already signed the terms.
func (c *Client) HasAcceptedTerms(ctx context.Context, user common.Address) (bool, error) {
	var out struct {
		Signed bool `json:"signed"`
	}
	if err := c.getJSON(ctx, "/terms-of-use/"+user.Hex(), &out); err != nil {
		return false, err
	}
	return out.Signed, nil
}

// AcceptTerms records the user's signature over the terms document.
func (c *Client) AcceptTerms(ctx context.Context, user common.Address, signature string) error {
	payload, err := json.Marshal(map[string]string{
		"signature": signature,
	})
	if err != nil {
		return errors.Wrap(err, "marshal terms signature")
	}

	status, err := c.post(ctx, "/terms-of-use/"+user.Hex(), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return errors.Errorf("accept terms: unexpected status %d", status)
	}
	return nil
}

// IsWhitelisted asks the service-side whitelist, used when the vault has
// no on-chain registry.
func (c *Client) IsWhitelisted(ctx context.Context, user common.Address) (bool, error) {
	var out struct {
		Whitelisted bool `json:"whitelisted"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/whitelist/%s", user.Hex()), &out); err != nil {
		return false, err
	}
	return out.Whitelisted, nil
}

// RefreshTokenHolders nudges the indexer after a confirmed transaction so
// holder-derived figures catch up sooner.
func (c *Client) RefreshTokenHolders(ctx context.Context) error {
	status, err := c.post(ctx, "/refresh-token-holders", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return errors.Errorf("refresh token holders: unexpected status %d", status)
	}
	return nil
}

type response struct {
	body   []byte
	status int
}

func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	resp, err := retrier.DoWithData(c.retry, ctx, func(ctx context.Context) (response, error) {
		return c.getOnce(ctx, path)
	})
	return resp.body, resp.status, err
}

func (c *Client) getOnce(ctx context.Context, path string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return response{}, retrier.Permanent(errors.Wrap(err, "build request"))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, errors.Wrapf(err, "GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, errors.Wrapf(err, "read %s response", path)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return response{}, errors.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return response{body: body, status: resp.StatusCode}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, status, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errors.Errorf("GET %s: unexpected status %d", path, status)
	}
	return errors.Wrapf(json.Unmarshal(body, out), "decode %s", path)
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "POST %s", path)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
