// Package vision calls the Azure AI Vision image analysis API.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"visionqa-gateway/internal/httpx"
)

// DefaultAPIVersion of the Image Analysis 4.0 REST API.
const DefaultAPIVersion = "2024-02-01"

// DefaultFeatures requested for every image.
var DefaultFeatures = []string{"caption", "read", "tags", "objects"}

type Object struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Analysis is the visual content extracted from one image.
type Analysis struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
	Objects []Object `json:"objects"`
	// Text holds OCR lines in reading order.
	Text []string `json:"text"`
}

type Analyzer interface {
	Analyze(ctx context.Context, image []byte) (*Analysis, error)
}

type Config struct {
	Endpoint   string
	Key        string
	APIVersion string
	Features   []string
	HTTP       httpx.Config
}

type Client struct {
	cfg    Config
	http   *httpx.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.Endpoint == "" {
		return nil, errors.New("vision: endpoint is required")
	}
	if cfg.Key == "" {
		return nil, errors.New("vision: key is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if len(cfg.Features) == 0 {
		cfg.Features = DefaultFeatures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("vision")

	return &Client{cfg: cfg, http: httpx.New(cfg.HTTP, logger), logger: logger}, nil
}

// Close releases idle upstream connections.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) analyzeURL() string {
	q := url.Values{}
	q.Set("api-version", c.cfg.APIVersion)
	q.Set("features", strings.Join(c.cfg.Features, ","))
	return c.cfg.Endpoint + "/computervision/imageanalysis:analyze?" + q.Encode()
}

// Analyze submits raw image bytes and maps the response to an Analysis.
func (c *Client) Analyze(ctx context.Context, image []byte) (*Analysis, error) {
	if len(image) == 0 {
		return nil, errors.New("vision: empty image")
	}
	start := time.Now()
	target := c.analyzeURL()

	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(image))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vision: analyze: %w", err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("vision: analyze: %w", err)
	}

	var raw analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("vision: decode response: %w", err)
	}

	out := raw.toAnalysis()
	c.logger.Info("image analyzed",
		zap.Int("bytes", len(image)),
		zap.Int("tags", len(out.Tags)),
		zap.Int("objects", len(out.Objects)),
		zap.Int("text_lines", len(out.Text)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

type analyzeResponse struct {
	CaptionResult *struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"captionResult"`
	TagsResult *struct {
		Values []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"values"`
	} `json:"tagsResult"`
	ObjectsResult *struct {
		Values []struct {
			Tags []struct {
				Name       string  `json:"name"`
				Confidence float64 `json:"confidence"`
			} `json:"tags"`
		} `json:"values"`
	} `json:"objectsResult"`
	ReadResult *struct {
		Blocks []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"blocks"`
	} `json:"readResult"`
}

func (r *analyzeResponse) toAnalysis() *Analysis {
	a := &Analysis{Tags: []string{}, Objects: []Object{}, Text: []string{}}

	if r.CaptionResult != nil {
		a.Caption = r.CaptionResult.Text
	}
	if r.TagsResult != nil {
		for _, t := range r.TagsResult.Values {
			a.Tags = append(a.Tags, t.Name)
		}
	}
	if r.ObjectsResult != nil {
		for _, o := range r.ObjectsResult.Values {
			// an object's best label is its first tag
			if len(o.Tags) == 0 {
				continue
			}
			a.Objects = append(a.Objects, Object{Name: o.Tags[0].Name, Confidence: o.Tags[0].Confidence})
		}
	}
	if r.ReadResult != nil {
		for _, b := range r.ReadResult.Blocks {
			for _, l := range b.Lines {
				a.Text = append(a.Text, l.Text)
			}
		}
	}
	return a
}
