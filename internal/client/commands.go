package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/EnzoMH/cradcrawl/internal/wire"
)

// ErrNoKeywords is returned before any network call when the keyword input
// trims down to nothing. Validation failures are user-facing, not logged.
var ErrNoKeywords = errors.New("키워드를 하나 이상 입력해주세요")

// Start submits a crawl. On a success envelope the running flag flips
// optimistically; the next status push is the eventual source of truth.
func (c *Client) Start(ctx context.Context, keywords []string, startDate, endDate string, headless bool) error {
	kws := trimKeywords(keywords)
	if len(kws) == 0 {
		return ErrNoKeywords
	}

	req := wire.StartRequest{
		Keywords:  kws,
		StartDate: startDate,
		EndDate:   endDate,
		Headless:  headless,
		ClientInfo: wire.ClientInfo{
			UserAgent: c.ua,
			Timestamp: time.Now().Format(time.RFC3339),
		},
	}

	resp, err := c.doJSON(ctx, http.MethodPost, "/api/start", req)
	if err != nil {
		c.store.LocalLog(wire.LevelError, "크롤링 시작 요청 실패: "+err.Error())
		return err
	}
	if !resp.OK() {
		c.store.LocalLog(wire.LevelError, "크롤링 시작 실패: "+resp.Message)
		return fmt.Errorf("start rejected: %s", resp.Message)
	}

	c.store.SetRunning(true)
	return nil
}

// Stop requests a stop. The running flag is not flipped here; it stays
// whatever the reconciler last established until a status or error frame
// confirms the stop.
func (c *Client) Stop(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/api/stop", nil)
	if err != nil {
		c.store.LocalLog(wire.LevelError, "중지 요청 실패: "+err.Error())
		return err
	}
	if !resp.OK() {
		c.store.LocalLog(wire.LevelWarning, "중지 요청이 거부되었습니다: "+resp.Message)
		return fmt.Errorf("stop rejected: %s", resp.Message)
	}

	c.store.LocalLog(wire.LevelInfo, "크롤링 중지를 요청했습니다.")
	return nil
}

// PullStatus fetches the authoritative status and feeds it through the same
// reconciler path as push frames.
func (c *Client) PullStatus(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		c.store.LocalLog(wire.LevelError, "상태 조회 실패: "+err.Error())
		return err
	}
	if !resp.OK() {
		c.store.LocalLog(wire.LevelError, "상태 조회 실패: "+resp.Message)
		return fmt.Errorf("status pull rejected: %s", resp.Message)
	}

	if resp.Data != nil {
		c.store.Apply(wire.Message{Kind: wire.KindStatus, Status: resp.Data})
	}
	if resp.Results != nil {
		c.store.Apply(wire.Message{Kind: wire.KindResult, Result: &wire.ResultData{Results: resp.Results}})
	}
	return nil
}

// PullResults fetches the full result list and replaces the local set, empty
// or not — the same full-replace rule a result push uses.
func (c *Client) PullResults(ctx context.Context) error {
	resp, err := c.doJSON(ctx, http.MethodGet, "/api/crawl-results/", nil)
	if err != nil {
		c.store.LocalLog(wire.LevelError, "결과 조회 실패: "+err.Error())
		return err
	}
	if !resp.OK() {
		c.store.LocalLog(wire.LevelError, "결과 조회 실패: "+resp.Message)
		return fmt.Errorf("results pull rejected: %s", resp.Message)
	}

	c.store.Apply(wire.Message{Kind: wire.KindResult, Result: &wire.ResultData{Results: resp.Results}})
	return nil
}

// Download streams the exported result file into w and reports the server's
// suggested filename. A JSON body means the server refused (no results yet).
func (c *Client) Download(ctx context.Context, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/results/download", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		c.store.LocalLog(wire.LevelError, "다운로드 실패: "+err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var env wire.Response
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && !env.OK() {
			c.store.LocalLog(wire.LevelWarning, "다운로드할 결과가 없습니다: "+env.Message)
			return "", fmt.Errorf("download rejected: %s", env.Message)
		}
		return "", fmt.Errorf("unexpected download response")
	}

	filename := "crawl_results"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			filename = name
		}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("download copy: %w", err)
	}
	return filename, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*wire.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env wire.Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: unexpected response (%s): %w", method, path, resp.Status, err)
	}
	return &env, nil
}

func trimKeywords(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
