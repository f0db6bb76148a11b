package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipMiddleware_CompressesResponse(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Encoding", "gzip")

	w := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(w, r)

	res := w.Result()
	if res.Header.Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", res.Header.Get("Content-Encoding"))
	}

	zr, err := gzip.NewReader(res.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body = %q, want payload", body)
	}
}

func TestGzipMiddleware_DecompressesRequest(t *testing.T) {
	var got []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		got = body
	})

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("compressed request")); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Encoding", "gzip")

	GzipMiddleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if string(got) != "compressed request" {
		t.Fatalf("handler saw %q, want decompressed body", got)
	}
}

func TestGzipMiddleware_PassthroughWithoutAcceptEncoding(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain"))
	})

	w := httptest.NewRecorder()
	GzipMiddleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	res := w.Result()
	if res.Header.Get("Content-Encoding") != "" {
		t.Fatalf("unexpected Content-Encoding: %q", res.Header.Get("Content-Encoding"))
	}
	body, _ := io.ReadAll(res.Body)
	if string(body) != "plain" {
		t.Fatalf("body = %q, want plain", body)
	}
}
