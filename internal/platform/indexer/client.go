package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"flashsquad-backend/internal/common/logger"
)

// ErrUnavailable is returned when the indexer could not answer in time.
var ErrUnavailable = errors.New("nft indexer unavailable")

var chainRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const defaultMaxResponseBytes = 4 << 20

type Options struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	BaseDelay  time.Duration
	HTTPClient *http.Client

	// MaxResponseBytes caps a response body; larger answers are rejected.
	MaxResponseBytes int64
}

// Client talks to the NFT indexing GraphQL API.
type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	maxRetries uint64
	baseDelay  time.Duration
	maxBytes   int64
	httpClient *http.Client
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	if opts.MaxResponseBytes <= 0 {
		opts.MaxResponseBytes = defaultMaxResponseBytes
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		url:        strings.TrimRight(opts.URL, "/"),
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		maxBytes:   opts.MaxResponseBytes,
		httpClient: opts.HTTPClient,
	}
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

const walletFields = `
      address
      ensName`

const nftFields = `
      walletNFTs(first: $first) {
        edges {
          node {
            nft {
              tokenId
              contractAddress
              name
              description
              metadata
              collection {
                address
                name
                description
                image { url mimeType }
              }
              uploads { url mimeType }
            }
          }
        }
      }`

func walletQuery(chain string, withNFTs bool) string {
	fields := walletFields
	args := "$address: String!"
	if withNFTs {
		fields += nftFields
		args += ", $first: Int!"
	}
	return fmt.Sprintf("query WalletByAddress(%s) {\n  %s {\n    walletByAddress(address: $address) {%s\n    }\n  }\n}", args, chain, fields)
}

// WalletByAddress fetches the wallet and up to first of its NFTs on one chain.
// A wallet unknown to the indexer yields an empty result, not an error.
func (c *Client) WalletByAddress(ctx context.Context, chain, address string, first int) (*Wallet, error) {
	if !chainRe.MatchString(chain) {
		return nil, fmt.Errorf("invalid chain %q", chain)
	}
	if first <= 0 {
		first = 50
	}

	data, err := c.do(ctx, walletQuery(chain, true), map[string]interface{}{
		"address": address,
		"first":   first,
	})
	if err != nil {
		return nil, err
	}
	return decodeWallet(data, chain, address)
}

// ENSName resolves the primary ENS name of address, empty when none is set.
func (c *Client) ENSName(ctx context.Context, address string) (string, error) {
	data, err := c.do(ctx, walletQuery("ethereum", false), map[string]interface{}{
		"address": address,
	})
	if err != nil {
		return "", err
	}
	w, err := decodeWallet(data, "ethereum", address)
	if err != nil {
		return "", err
	}
	return w.ENSName, nil
}

func decodeWallet(data json.RawMessage, chain, address string) (*Wallet, error) {
	var root map[string]*struct {
		WalletByAddress *walletNode `json:"walletByAddress"`
	}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode %s wallet: %w", chain, err)
	}

	out := &Wallet{Chain: chain, Address: address}
	node := root[chain]
	if node == nil || node.WalletByAddress == nil {
		return out, nil
	}
	w := node.WalletByAddress
	if w.Address != "" {
		out.Address = w.Address
	}
	if w.ENSName != nil {
		out.ENSName = *w.ENSName
	}
	for _, edge := range w.WalletNFTs.Edges {
		out.NFTs = append(out.NFTs, edge.Node.NFT.toNFT())
	}
	return out, nil
}

// do posts one GraphQL operation, retrying transient failures with
// exponential backoff. Each attempt gets its own timeout.
func (c *Client) do(ctx context.Context, query string, vars map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var data json.RawMessage
	attempt := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.baseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		d, err := c.post(ctx, body)
		if err != nil {
			logger.Debug().Err(err).Int("attempt", attempt).Msg("Indexer request failed")
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, retry.RetryableError(fmt.Errorf("indexer http %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer http %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read response: %w", err))
	}
	if int64(len(raw)) > c.maxBytes {
		return nil, fmt.Errorf("indexer response larger than %d bytes", c.maxBytes)
	}

	var out graphQLResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, retry.RetryableError(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("indexer graphql: %s", out.Errors[0].Message)
	}
	return out.Data, nil
}
