package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Well-known Azurite development account key.
const devAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

type fakeBlobService struct {
	mu          sync.Mutex
	blobs       map[string][]byte
	contentType map[string]string
}

func (f *fakeBlobService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// /devstoreaccount1/<container>/<blob>
	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("x-ms-request-id", "req-1")
	w.Header().Set("x-ms-version", "2025-01-05")

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.blobs[name] = body
		f.contentType[name] = r.Header.Get("x-ms-blob-content-type")
		w.Header().Set("ETag", `"0x8D"`)
		w.Header().Set("Last-Modified", "Tue, 03 Mar 2026 10:00:00 GMT")
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet, http.MethodHead:
		data, ok := f.blobs[name]
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", f.contentType[name])
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"0x8D"`)
		w.Header().Set("Last-Modified", "Tue, 03 Mar 2026 10:00:00 GMT")
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeBlobService) stored(name string) ([]byte, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blobs[name], f.contentType[name]
}

func newTestAzureStore(t *testing.T) (*AzureStore, *fakeBlobService) {
	t.Helper()
	svc := &fakeBlobService{blobs: map[string][]byte{}, contentType: map[string]string{}}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	conn := "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=" + devAccountKey +
		";BlobEndpoint=" + srv.URL + "/devstoreaccount1;"
	s, err := NewAzureStore(conn, "uploads", zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, svc
}

func TestAzureStoreUploadSetsContentType(t *testing.T) {
	s, svc := newTestAzureStore(t)
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\nrest")

	require.NoError(t, s.Upload(ctx, "cat.png", png))
	body, contentType := svc.stored("cat.png")
	require.Equal(t, png, body)
	require.Equal(t, "image/png", contentType)

	got, err := s.Download(ctx, "cat.png")
	require.NoError(t, err)
	require.Equal(t, png, got)

	info, err := s.Properties(ctx, "cat.png")
	require.NoError(t, err)
	require.Equal(t, "uploads", info.Container)
	require.Equal(t, int64(len(png)), info.Size)
	require.Equal(t, "image/png", info.ContentType)
	require.False(t, info.LastModified.IsZero())
}

func TestAzureStoreMissingBlob(t *testing.T) {
	s, _ := newTestAzureStore(t)

	_, err := s.Download(context.Background(), "nope.png")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Properties(context.Background(), "nope.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewAzureStoreRequiresContainer(t *testing.T) {
	_, err := NewAzureStore("UseDevelopmentStorage=true", "", zaptest.NewLogger(t))
	require.Error(t, err)
}
