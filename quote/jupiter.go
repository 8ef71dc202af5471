// Package quote fetches swap routes from the Jupiter aggregator.
package quote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	commonerrors "github.com/unikron/intent-relay/common/errors"
	"github.com/unikron/intent-relay/common/types"
)

const (
	// DefaultBaseURL is the public Jupiter v6 quote endpoint.
	DefaultBaseURL = "https://quote-api.jup.ag/v6"

	defaultTimeout     = 10 * time.Second
	defaultSlippageBps = 50
)

// Request describes the quote being asked for. Amount is in the smallest
// unit of the input mint.
type Request struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippageBps,omitempty"`
}

// Client fetches routes from the Jupiter quote API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
}

// NewClient creates a quote client. An empty baseURL uses the public
// endpoint; a non-positive timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetQuote fetches the best route for a trade. Aggregator rejections of the
// parameters surface as validation errors; transport and server failures as
// upstream errors.
func (c *Client) GetQuote(ctx context.Context, req *Request) (*types.Route, error) {
	if violations := validateRequest(req); len(violations) > 0 {
		return nil, commonerrors.NewValidation(violations...)
	}

	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = defaultSlippageBps
	}

	query := url.Values{}
	query.Set("inputMint", req.InputMint)
	query.Set("outputMint", req.OutputMint)
	query.Set("amount", strconv.FormatUint(req.Amount, 10))
	query.Set("slippageBps", strconv.Itoa(slippage))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build quote request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, commonerrors.NewUpstream("jupiter", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, commonerrors.NewUpstream("jupiter", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return nil, commonerrors.NewValidation("aggregator rejected quote parameters: " + apiError(body))
	default:
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Warn("Quote request failed")
		return nil, commonerrors.NewUpstream("jupiter",
			errors.Errorf("unexpected status %d", resp.StatusCode))
	}

	var route types.Route
	if err := json.Unmarshal(body, &route); err != nil {
		return nil, commonerrors.NewUpstream("jupiter",
			errors.Wrap(err, "failed to decode quote response"))
	}
	if route.InputMint == "" || route.OutAmount == "" {
		return nil, commonerrors.NewUpstream("jupiter",
			errors.New("quote response is missing route fields"))
	}

	return &route, nil
}

func validateRequest(req *Request) []string {
	var violations []string
	if req.InputMint == "" {
		violations = append(violations, "inputMint is required")
	}
	if req.OutputMint == "" {
		violations = append(violations, "outputMint is required")
	}
	if req.InputMint != "" && req.InputMint == req.OutputMint {
		violations = append(violations, "inputMint and outputMint must differ")
	}
	if req.Amount == 0 {
		violations = append(violations, "amount must be positive")
	}
	return violations
}

// apiError extracts the error field from an aggregator error body, falling
// back to the raw body.
func apiError(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return string(body)
}
