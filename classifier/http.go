package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// FilenameHeader carries the declared file name to the model server.
const FilenameHeader = "X-Filename"

// HTTPModel is a Model served over HTTP. The content is POSTed as the raw
// request body and the server answers with a JSON encoded Probabilities.
type HTTPModel struct {
	endpoint string
	client   *http.Client
}

// NewHTTPModel returns HTTPModel posting to endpoint. Nil client means a
// default one with the given timeout (30s if not positive).
func NewHTTPModel(endpoint string, client *http.Client, timeout time.Duration) (*HTTPModel, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse classifier endpoint: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported classifier endpoint scheme %q", u.Scheme)
	}

	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &HTTPModel{endpoint: u.String(), client: client}, nil
}

// Predict implements Model.
func (m *HTTPModel) Predict(ctx context.Context, name string, data []byte) (Probabilities, error) {
	var res Probabilities

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(data))
	if err != nil {
		return res, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if name != "" {
		req.Header.Set(FilenameHeader, name)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return res, fmt.Errorf("model server status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var body struct {
		Fake *float64 `json:"fake"`
		Real *float64 `json:"real"`
	}

	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if body.Fake == nil || body.Real == nil {
		return res, fmt.Errorf("%w: %w", ErrMalformed, errors.New("missing class probability"))
	}

	res.Fake, res.Real = *body.Fake, *body.Real

	return res, nil
}
