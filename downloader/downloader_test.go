package downloader

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDownloadAllSucceedsForEachItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake-image-bytes"))
	}))
	defer srv.Close()

	d := New(Config{MaxConcurrent: 2})
	dest1 := &bytes.Buffer{}
	dest2 := &bytes.Buffer{}
	results := d.DownloadAll(context.Background(), []Item{
		{URL: srv.URL, Dest: dest1},
		{URL: srv.URL, Dest: dest2},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("result %d: unexpected error %v", i, r.Err)
		}
		if r.ContentType != "image/jpeg" {
			t.Errorf("result %d: content type = %q", i, r.ContentType)
		}
	}
	if dest1.String() != "fake-image-bytes" || dest2.String() != "fake-image-bytes" {
		t.Fatal("expected both destinations to receive the body")
	}
}

func TestDownloadAllIsNotFailFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := New(Config{MaxConcurrent: 4})
	results := d.DownloadAll(context.Background(), []Item{
		{URL: srv.URL + "/good", Dest: &bytes.Buffer{}},
		{URL: srv.URL + "/bad", Dest: &bytes.Buffer{}},
		{URL: srv.URL + "/good", Dest: &bytes.Buffer{}},
	})

	if results[0].Err != nil || results[2].Err != nil {
		t.Fatal("expected the good downloads to succeed despite the bad one failing")
	}
	if results[1].Err == nil {
		t.Fatal("expected the bad download to report an error")
	}
}

func TestDownloadAllBoundsConcurrency(t *testing.T) {
	var inFlight, maxInFlight int32
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if n <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	const limit = 2
	d := New(Config{MaxConcurrent: limit})

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{URL: srv.URL, Dest: &bytes.Buffer{}}
	}

	done := make(chan []Result, 1)
	go func() {
		done <- d.DownloadAll(context.Background(), items)
	}()

	time.Sleep(200 * time.Millisecond)
	close(release)
	<-done

	if got := atomic.LoadInt32(&maxInFlight); got > limit {
		t.Fatalf("expected at most %d concurrent downloads, observed %d", limit, got)
	}
}

func TestDownloadAllSlowSpeedAbort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 20; i++ {
			w.Write([]byte("x"))
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(50 * time.Millisecond)
		}
	}))
	defer srv.Close()

	d := New(Config{
		MaxConcurrent:       1,
		MinSpeedBytesPerSec: 1_000_000, // any real throughput here is "too slow"
		SlowSpeedTimeout:    150 * time.Millisecond,
		SpeedCheckInterval:  50 * time.Millisecond,
	})

	results := d.DownloadAll(context.Background(), []Item{{URL: srv.URL, Dest: &bytes.Buffer{}}})
	if !results[0].SlowAbort {
		t.Fatalf("expected a slow-speed abort, got %+v", results[0])
	}
}
