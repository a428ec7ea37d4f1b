package ai

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
	"net/url"
	"strings"
)

// Text2ImgClient talks to the text-to-image provider: one call to submit a job,
// one call per status check
type Text2ImgClient struct {
	conf       *core.GenerationConfig
	log        *slog.Logger
	httpClient *http.Client
}

func NewText2ImgClient(conf *core.GenerationConfig, log *slog.Logger) *Text2ImgClient {
	return &Text2ImgClient{
		conf: conf,
		log:  log.With(sl.Module("text2img")),
		httpClient: &http.Client{
			Timeout: conf.Timeout,
		},
	}
}

func (c *Text2ImgClient) endpoint(path string) string {
	return strings.TrimRight(c.conf.BaseUrl, "/") + path
}

func (c *Text2ImgClient) Submit(ctx context.Context, req core.GenerationRequest) (core.JobHandle, error) {
	jsonBytes, err := json.Marshal(NewText2ImgRequest(c.conf, req))
	if err != nil {
		return "", &core.SubmissionError{Reason: "marshalling request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(submitPath), bytes.NewReader(jsonBytes))
	if err != nil {
		return "", &core.SubmissionError{Reason: "making request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(httpReq)
	if err != nil {
		return "", &core.SubmissionError{Reason: "sending request", Err: err}
	}
	c.log.With(
		slog.String("model", req.ModelId),
		slog.Int("status", status),
		sl.Short("body", string(body), 500),
	).Debug("submit response")

	if status < 200 || status > 299 {
		return "", &core.SubmissionError{Reason: fmt.Sprintf("unexpected status %d", status)}
	}

	var response SubmitResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return "", &core.SubmissionError{
			Reason: "decoding response",
			Err:    &core.ParseError{Source: "submit", Err: err},
		}
	}
	if response.Data == nil || response.Data.FetchKey == "" {
		reason := "response has no data.fetchKey"
		if response.Msg != "" {
			reason = fmt.Sprintf("%s (%s)", reason, response.Msg)
		}
		return "", &core.SubmissionError{Reason: reason}
	}

	return core.JobHandle(response.Data.FetchKey), nil
}

func (c *Text2ImgClient) Status(ctx context.Context, handle core.JobHandle) (core.PollResult, error) {
	query := url.Values{}
	query.Set("fetchKey", string(handle))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(fetchPath)+"?"+query.Encode(), nil)
	if err != nil {
		return core.PollResult{}, fmt.Errorf("making request: %w", err)
	}

	status, body, err := c.do(httpReq)
	if err != nil {
		return core.PollResult{}, fmt.Errorf("fetching result: %w", err)
	}
	c.log.With(
		slog.String("fetch_key", string(handle)),
		slog.Int("status", status),
		sl.Short("body", string(body), 500),
	).Debug("fetch result response")

	if status < 200 || status > 299 {
		return core.PollResult{}, fmt.Errorf("fetching result: unexpected status %d", status)
	}

	var response FetchResultResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return core.PollResult{}, &core.ParseError{Source: "fetch result", Err: err}
	}
	if response.Data == nil || response.Data.PicUrl == "" {
		return core.Pending(), nil
	}
	return core.Ready(response.Data.PicUrl), nil
}

func (c *Text2ImgClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Error("closing response body", sl.Err(err))
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}
