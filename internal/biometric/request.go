package biometric

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/interview-guard/internal/integrity"
	"github.com/spigell/interview-guard/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	maxLogBody      = 200
)

// VerifyFace compares the frame with the enrolled image within the face timeout.
func (c *Client) VerifyFace(ctx context.Context, req FaceRequest) Result {
	if len(req.Frame) == 0 {
		return failed(fmt.Errorf("%w: empty frame", integrity.ErrInvalidInput))
	}

	ctx, cancel := context.WithTimeout(ctx, c.faceTimeout)
	defer cancel()

	payload := map[string]any{
		"user_id":         req.UserID,
		"reference_image": req.ReferenceImage,
		"image":           base64.StdEncoding.EncodeToString(req.Frame),
	}

	raw, err := c.postJSON(ctx, c.APIURL+faceEndpoint, payload)
	if err != nil {
		c.logger.Debug("face verification failed", zap.Error(err))
		return failed(err)
	}

	return normalizeFace(raw)
}

// VerifyVoice compares the audio chunk with the enrolled voice within the voice timeout.
func (c *Client) VerifyVoice(ctx context.Context, req VoiceRequest) Result {
	if len(req.Audio) == 0 {
		return failed(fmt.Errorf("%w: empty audio chunk", integrity.ErrInvalidInput))
	}

	ctx, cancel := context.WithTimeout(ctx, c.voiceTimeout)
	defer cancel()

	payload := map[string]any{
		"user_id":         req.UserID,
		"reference_audio": req.ReferenceAudio,
		"audio":           base64.StdEncoding.EncodeToString(req.Audio),
		"reference_text":  req.ReferenceText,
	}

	raw, err := c.postJSON(ctx, c.APIURL+voiceEndpoint, payload)
	if err != nil {
		c.logger.Debug("voice verification failed", zap.Error(err))
		return failed(err)
	}

	return normalizeVoice(raw)
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", integrity.ErrInvalidInput, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", integrity.ErrInvalidInput, err)
	}

	req = c.setHeaders(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.request(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integrity.ErrTransientBackend, err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed gzip body: %v", integrity.ErrTransientBackend, err)
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", integrity.ErrTransientBackend, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: bad status: %s", integrity.ErrTransientBackend, resp.Status)
	}

	var raw map[string]any
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			c.logger.Debug("malformed backend payload",
				zap.String("url", url),
				zap.String("body_preview", utils.TruncateForLog(string(data), maxLogBody)),
			)
			return nil, fmt.Errorf("%w: malformed payload: %v", integrity.ErrTransientBackend, err)
		}
	}

	// Flask answers a rejected comparison with 4xx and an error body; that
	// is still a usable answer when it carries an error message.
	if resp.StatusCode >= http.StatusBadRequest {
		msg := coerceString(raw["error"])
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%w: backend rejected request: %s", integrity.ErrInvalidInput, msg)
	}

	if raw == nil {
		return nil, fmt.Errorf("%w: empty payload", integrity.ErrTransientBackend)
	}

	return raw, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	started := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("timeout after %s: %w", time.Since(started).Round(time.Millisecond), err)
		}
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
