package market

import (
	"Muse/core"
	"Muse/lib/sl"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

const emptySnapshot = "No projects found."

type Entry struct {
	Name    string
	Address string
	Prices  []float64
}

// Snapshot keeps the provider's ranking order
type Snapshot []Entry

type projectsResponse struct {
	Data *struct {
		Data json.RawMessage `json:"data"`
	} `json:"data"`
}

type project struct {
	Name             string  `json:"name"`
	MainTokenAddress string  `json:"main_token_address"`
	Tokens           []token `json:"tokens"`
}

type token struct {
	Price json.RawMessage `json:"price"`
}

type Fetcher struct {
	conf       *core.MarketConfig
	log        *slog.Logger
	httpClient *http.Client
}

func NewFetcher(conf *core.MarketConfig, log *slog.Logger) *Fetcher {
	return &Fetcher{
		conf: conf,
		log:  log.With(sl.Module("market")),
		httpClient: &http.Client{
			Timeout: conf.Timeout,
		},
	}
}

func (f *Fetcher) Fetch(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.conf.Url, nil)
	if err != nil {
		return nil, &core.FetchError{Reason: "making request", Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &core.FetchError{Reason: "getting response", Err: err}
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			f.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.FetchError{Reason: "reading response body", Err: err}
	}
	f.log.With(
		slog.Int("status", resp.StatusCode),
		sl.Short("body", string(body), 1000),
	).Debug("projects response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	snapshot, err := Parse(body)
	if err != nil {
		return nil, err
	}
	f.log.Info("projects fetched", slog.Int("count", len(snapshot)))
	return snapshot, nil
}

// Parse reads the ranked list from data.data. Every token price that is present
// is kept, entries without prices are not an error.
func Parse(body []byte) (Snapshot, error) {
	var response projectsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &core.FetchError{
			Reason: "decoding response",
			Err:    &core.ParseError{Source: "projects", Err: err},
		}
	}

	var raw []byte
	if response.Data != nil {
		raw = bytes.TrimSpace(response.Data.Data)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return nil, &core.FetchError{Reason: "response has no data.data array"}
	}

	var projects []project
	if err := json.Unmarshal(raw, &projects); err != nil {
		return nil, &core.FetchError{
			Reason: "decoding projects",
			Err:    &core.ParseError{Source: "projects", Err: err},
		}
	}

	snapshot := make(Snapshot, 0, len(projects))
	for _, p := range projects {
		entry := Entry{
			Name:    p.Name,
			Address: p.MainTokenAddress,
		}
		for _, t := range p.Tokens {
			if price, ok := parsePrice(t.Price); ok {
				entry.Prices = append(entry.Prices, price)
			}
		}
		snapshot = append(snapshot, entry)
	}
	return snapshot, nil
}

// parsePrice skips missing, null and non-numeric prices
func parsePrice(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var price float64
	if err := json.Unmarshal(raw, &price); err != nil {
		return 0, false
	}
	return price, true
}

// Format renders the whole snapshot as one message
func Format(snapshot Snapshot) string {
	if len(snapshot) == 0 {
		return emptySnapshot
	}
	blocks := make([]string, 0, len(snapshot))
	for _, entry := range snapshot {
		var b strings.Builder
		b.WriteString("Name: " + entry.Name + "\n")
		b.WriteString("Address: " + entry.Address + "\n")
		for _, price := range entry.Prices {
			b.WriteString("Price: " + strconv.FormatFloat(price, 'f', -1, 64) + "\n")
		}
		blocks = append(blocks, b.String())
	}
	return strings.TrimSuffix(strings.Join(blocks, "\n"), "\n")
}

func (f *Fetcher) TopProjects(ctx context.Context) (string, error) {
	snapshot, err := f.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return Format(snapshot), nil
}
