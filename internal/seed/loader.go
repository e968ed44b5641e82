// Package seed downloads the transactions document used to (re)initialise
// the store.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"

	"salestats/internal/core"
	"salestats/internal/log"
)

// DefaultURL is the public seed document.
const DefaultURL = "https://s3.amazonaws.com/roxiler.com/product_transaction.json"

// maxPayload bounds the downloaded document.
const maxPayload = 32 << 20

var (
	ErrFetch  = errors.New("fetch seed data")
	ErrDecode = errors.New("decode seed data")
)

// Result is a validated seed payload.
type Result struct {
	Transactions []core.Transaction
	Bytes        int
}

// Size renders the payload size for logs and events.
func (r Result) Size() string {
	return humanize.Bytes(uint64(r.Bytes))
}

type Loader struct {
	client *http.Client
	url    string
	logger *log.Logger
}

// NewLoader creates a loader for url. A nil client uses http.DefaultClient.
func NewLoader(client *http.Client, url string, logger *log.Logger) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Loader{
		client: client,
		url:    url,
		logger: logger.WithComponent(log.ComponentSeed),
	}
}

func (l *Loader) URL() string { return l.url }

// Load fetches and validates the seed document. Nothing is written anywhere;
// callers replace the store with the result.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	l.logger.DebugContext(ctx, "Fetching seed data", log.FieldSeedURL, l.url)

	resp, err := l.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload+1))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if len(body) > maxPayload {
		return Result{}, fmt.Errorf("%w: payload exceeds %s", ErrFetch, humanize.Bytes(maxPayload))
	}

	txs, err := Decode(body)
	if err != nil {
		return Result{}, err
	}

	res := Result{Transactions: txs, Bytes: len(body)}
	l.logger.InfoContext(ctx, "Seed data fetched",
		log.FieldSeedURL, l.url,
		log.FieldRecords, len(txs),
		log.FieldBytes, res.Size())

	return res, nil
}

// Decode parses a JSON array of transactions and validates every record.
// Duplicate ids reject the whole document.
func Decode(data []byte) ([]core.Transaction, error) {
	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	seen := make(map[int64]struct{}, len(txs))
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d (id %d): %w", ErrDecode, i, t.ID, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: %w %d", ErrDecode, i, core.ErrDuplicateID, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}
