package attachment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestClient_UploadReturnsURL(t *testing.T) {
	t.Parallel()

	var gotName, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != uploadPath {
			http.Error(w, "unexpected route", http.StatusNotFound)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotName, gotBody = header.Filename, string(raw)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://cdn.test/shirt-red.png"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+"/", time.Second, nil)
	url, err := client.Upload(context.Background(), "shirt-red.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cdn.test/shirt-red.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if gotName != "shirt-red.png" || gotBody != "png-bytes" {
		t.Fatalf("server received name=%q body=%q", gotName, gotBody)
	}
}

func TestClient_UploadFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error with message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"message":"storage unavailable"}`))
			},
		},
		{
			name: "empty url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"url":""}`))
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tc.handler)
			t.Cleanup(server.Close)

			_, err := NewClient(server.URL, time.Second, nil).Upload(context.Background(), "a.png", strings.NewReader("x"))
			if !errors.Is(err, ErrUpload) {
				t.Fatalf("expected ErrUpload, got %v", err)
			}
		})
	}
}

func TestClient_UploadValidatesInput(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1", time.Second, nil)
	if _, err := client.Upload(context.Background(), " ", strings.NewReader("x")); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid filename, got %v", err)
	}
	if _, err := client.Upload(context.Background(), "a.png", nil); !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid content, got %v", err)
	}
}

func TestClient_UploadUnreachable(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond, nil)
	if _, err := client.Upload(context.Background(), "a.png", strings.NewReader("x")); !errors.Is(err, ErrUpload) {
		t.Fatalf("expected ErrUpload, got %v", err)
	}
}
