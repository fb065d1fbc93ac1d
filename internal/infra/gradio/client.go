// Package gradio calls a Hugging Face Space over its REST API: upload
// the inputs, invoke the named endpoint, read the result off the event
// stream and hand back a local artifact.
package gradio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
	"github.com/mexwill790-beep/wan/internal/infra/metrics"
)

// Fixed generation parameters: mix mode at the pro (720p) quality tier.
const (
	ModeMix    = "wan2.2-animate-mix"
	QualityPro = "wan-pro"
)

const apiPrefix = "/gradio_api"

type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	picker      EndpointPicker
	maxAttempts int
	logger      *zap.Logger

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

type ClientConfig struct {
	BaseURL     string
	Token       string
	MaxAttempts int
	Picker      EndpointPicker
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	picker := cfg.Picker
	if picker == nil {
		picker = ParamCountPicker{Want: 4}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		http:        &http.Client{},
		picker:      picker,
		maxAttempts: maxAttempts,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// ResolveEndpoint fetches the Space descriptor and applies the
// configured picker. A failed descriptor fetch falls back to
// DefaultEndpoint instead of aborting the run.
func (c *Client) ResolveEndpoint(ctx context.Context) (string, error) {
	info, err := c.describe(ctx)
	if err != nil {
		c.logger.Warn("space descriptor unavailable, using default endpoint",
			zap.String("endpoint", DefaultEndpoint),
			zap.Error(err),
		)
		return DefaultEndpoint, nil
	}
	return c.picker.Pick(info.NamedEndpoints), nil
}

// Generate runs one generation call with retries. Every attempt uploads
// both inputs, invokes the endpoint and normalizes the outcome; failed
// attempts back off min(60s, 5s x attempt) before the next try.
func (c *Client) Generate(ctx context.Context, endpoint, imagePath, videoPath, outDir string) (string, error) {
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attempts = attempt
		artifact, err := c.generateOnce(ctx, endpoint, imagePath, videoPath, outDir)
		if err == nil {
			return artifact, nil
		}
		lastErr = err

		if attempt == c.maxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		c.logger.Warn("generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.GenerationRetriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()

		if serr := c.sleep(ctx, delay); serr != nil {
			lastErr = serr
			break
		}
	}
	return "", &entity.GenerationError{Endpoint: endpoint, Attempts: attempts, Last: lastErr}
}

func (c *Client) generateOnce(ctx context.Context, endpoint, imagePath, videoPath, outDir string) (string, error) {
	imageRef, err := c.uploadFile(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	videoRef, err := c.uploadFile(ctx, videoPath)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}

	raw, err := c.call(ctx, endpoint, []any{imageRef, videoRef, ModeMix, QualityPro})
	if err != nil {
		return "", err
	}

	result, err := c.fetchArtifacts(ctx, raw, outDir)
	if err != nil {
		return "", err
	}
	return NormalizeResult(result)
}

type spaceInfo struct {
	NamedEndpoints map[string]EndpointInfo `json:"named_endpoints"`
}

func (c *Client) describe(ctx context.Context) (*spaceInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPrefix+"/info", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch space info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch space info: status %d", resp.StatusCode)
	}

	var info spaceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode space info: %w", err)
	}
	return &info, nil
}

// fileRef is the payload format file-typed endpoint inputs expect.
type fileRef struct {
	Path string   `json:"path"`
	Meta fileMeta `json:"meta"`
}

type fileMeta struct {
	Type string `json:"_type"`
}

// uploadFile pushes one local file to the Space and returns the
// server-side handle to pass as an endpoint input.
func (c *Client) uploadFile(ctx context.Context, localPath string) (fileRef, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return fileRef{}, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("files", filepath.Base(localPath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPrefix+"/upload", pr)
	if err != nil {
		return fileRef{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fileRef{}, fmt.Errorf("upload %s: %w", localPath, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fileRef{}, fmt.Errorf("upload %s: status %d", localPath, resp.StatusCode)
	}

	var serverPaths []string
	if err := json.NewDecoder(resp.Body).Decode(&serverPaths); err != nil {
		return fileRef{}, fmt.Errorf("decode upload response: %w", err)
	}
	if len(serverPaths) == 0 {
		return fileRef{}, fmt.Errorf("upload %s: empty response", localPath)
	}
	return fileRef{Path: serverPaths[0], Meta: fileMeta{Type: "gradio.FileData"}}, nil
}

type callAccepted struct {
	EventID string `json:"event_id"`
}

// call submits the endpoint invocation and waits on its result stream.
func (c *Client) call(ctx context.Context, endpoint string, data []any) (any, error) {
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	callURL := c.baseURL + apiPrefix + "/call" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("call %s: status %d", endpoint, resp.StatusCode)
	}

	var accepted callAccepted
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return nil, fmt.Errorf("decode call response: %w", err)
	}
	if accepted.EventID == "" {
		return nil, fmt.Errorf("call %s: no event id in response", endpoint)
	}

	return c.awaitResult(ctx, callURL+"/"+accepted.EventID)
}

// awaitResult reads the server-sent event stream until the job
// completes or errors out.
func (c *Client) awaitResult(ctx context.Context, streamURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("await result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("await result: status %d", resp.StatusCode)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				return decodeResult(data)
			case "error":
				return nil, fmt.Errorf("generation error event: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read result stream: %w", err)
	}
	return nil, fmt.Errorf("result stream ended without completion")
}

// decodeResult unwraps the completed event payload, the endpoint's
// output list. Single-output endpoints collapse to the bare value,
// matching what callers of the python client library see.
func decodeResult(data string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	if list, ok := out.([]any); ok && len(list) == 1 {
		return list[0], nil
	}
	return out, nil
}

// fetchArtifacts downloads remote file payloads referenced by the
// result so normalization only ever sees local paths. The Space returns
// file outputs as {"path": ..., "url": ...} objects; the python client
// library fetches those transparently and parity requires the same
// here.
func (c *Client) fetchArtifacts(ctx context.Context, result any, outDir string) (any, error) {
	switch v := result.(type) {
	case map[string]any:
		return c.fetchFileData(ctx, v, outDir)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				out[i] = item
				continue
			}
			fetched, err := c.fetchFileData(ctx, m, outDir)
			if err != nil {
				return nil, err
			}
			out[i] = fetched
		}
		return out, nil
	default:
		return result, nil
	}
}

// fetchFileData resolves one result object. An existing local path
// wins; otherwise a url field is downloaded into outDir. Objects with
// neither pass through untouched and fail normalization downstream.
func (c *Client) fetchFileData(ctx context.Context, m map[string]any, outDir string) (any, error) {
	if p, ok := m["path"].(string); ok && localFileExists(p) {
		return m, nil
	}
	rawURL, ok := m["url"].(string)
	if !ok || !strings.HasPrefix(rawURL, "http") {
		return m, nil
	}

	local := filepath.Join(outDir, artifactName(rawURL))
	if err := c.downloadURL(ctx, rawURL, local); err != nil {
		return nil, fmt.Errorf("fetch artifact %s: %w", rawURL, err)
	}

	out := make(map[string]any, len(m)+1)
	for k, val := range m {
		out[k] = val
	}
	out["path"] = local
	return out, nil
}

func artifactName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if name := entity.SafeFileName(path.Base(u.Path)); name != "" && name != "." {
			return name
		}
	}
	return "artifact.mp4"
}

func (c *Client) downloadURL(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay grows linearly with the attempt number, capped at one
// minute.
func backoffDelay(attempt int) time.Duration {
	secs := 5 * attempt
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}
