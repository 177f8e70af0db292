package vision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleResponse = `{
  "captionResult": {"text": "a cat sitting on a sofa", "confidence": 0.91},
  "tagsResult": {"values": [{"name": "cat", "confidence": 0.99}, {"name": "indoor", "confidence": 0.8}]},
  "objectsResult": {"values": [{"boundingBox": {"x": 1}, "tags": [{"name": "cat", "confidence": 0.87}]}, {"tags": []}]},
  "readResult": {"blocks": [{"lines": [{"text": "HELLO"}, {"text": "WORLD"}]}, {"lines": [{"text": "42"}]}]}
}`

func TestAnalyze(t *testing.T) {
	var gotKey, gotFeatures, gotType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/computervision/imageanalysis:analyze", r.URL.Path)
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotType = r.Header.Get("Content-Type")
		gotFeatures = r.URL.Query().Get("features")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Key: "vk"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	a, err := c.Analyze(context.Background(), []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)

	require.Equal(t, "vk", gotKey)
	require.Equal(t, "application/octet-stream", gotType)
	require.Equal(t, "caption,read,tags,objects", gotFeatures)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, gotBody)

	require.Equal(t, "a cat sitting on a sofa", a.Caption)
	require.Equal(t, []string{"cat", "indoor"}, a.Tags)
	require.Equal(t, []Object{{Name: "cat", Confidence: 0.87}}, a.Objects)
	require.Equal(t, []string{"HELLO", "WORLD", "42"}, a.Text)
}

func TestAnalyzeEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Key: "vk"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	a, err := c.Analyze(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Empty(t, a.Caption)
	require.NotNil(t, a.Tags)
	require.Empty(t, a.Text)
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"InvalidImageFormat"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, Key: "vk"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), []byte("img"))
	require.ErrorContains(t, err, "InvalidImageFormat")
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "https://eastus.api.cognitive.microsoft.com"}, nil)
	require.Error(t, err)
}
