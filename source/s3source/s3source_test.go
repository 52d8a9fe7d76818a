package s3source

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakePager struct {
	pages []*s3.ListObjectsV2Output
	i     int
}

func (f *fakePager) HasMorePages() bool { return f.i < len(f.pages) }

func (f *fakePager) NextPage(ctx context.Context, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := f.pages[f.i]
	f.i++
	return page, nil
}

func drain(t *testing.T, s *seq) []string {
	t.Helper()
	var urls []string
	for {
		batch, ok, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return urls
		}
		for _, item := range batch.Items {
			urls = append(urls, item.DownloadURL)
		}
	}
}

func TestValidateParamsRequiresBucket(t *testing.T) {
	a := &Adapter{}
	if err := a.ValidateParams("{}"); err == nil {
		t.Fatal("expected missing bucket to fail validation")
	}
	if err := a.ValidateParams(`{"bucket":"photos"}`); err != nil {
		t.Fatalf("expected bucket-only params to validate, got %v", err)
	}
}

func TestSeqPaginatesAcrossPages(t *testing.T) {
	pager := &fakePager{pages: []*s3.ListObjectsV2Output{
		{Contents: []types.Object{{Key: aws.String("a.jpg")}, {Key: aws.String("b.jpg")}}},
		{Contents: []types.Object{{Key: aws.String("c.jpg")}}},
	}}
	s := &seq{paginator: pager, params: Params{Bucket: "photos", Region: "us-east-1"}}

	urls := drain(t, s)
	if len(urls) != 3 {
		t.Fatalf("expected 3 items across pages, got %d: %v", len(urls), urls)
	}
}

func TestSeqRespectsLimit(t *testing.T) {
	pager := &fakePager{pages: []*s3.ListObjectsV2Output{
		{Contents: []types.Object{{Key: aws.String("a.jpg")}, {Key: aws.String("b.jpg")}, {Key: aws.String("c.jpg")}}},
	}}
	s := &seq{paginator: pager, params: Params{Bucket: "photos", Region: "us-east-1"}, limit: 2}

	urls := drain(t, s)
	if len(urls) != 2 {
		t.Fatalf("expected limit to cap at 2, got %d: %v", len(urls), urls)
	}
}

func TestObjectURLUsesBaseURLWhenSet(t *testing.T) {
	s := &seq{params: Params{Bucket: "photos", Region: "us-east-1", BaseURL: "https://cdn.example.test/"}}
	if got := s.objectURL("a/b.jpg"); got != "https://cdn.example.test/a/b.jpg" {
		t.Fatalf("expected base URL to be used and trailing slash trimmed, got %q", got)
	}
}

func TestObjectURLFallsBackToVirtualHostedStyle(t *testing.T) {
	s := &seq{params: Params{Bucket: "photos", Region: "us-west-2"}}
	want := "https://photos.s3.us-west-2.amazonaws.com/a.jpg"
	if got := s.objectURL("a.jpg"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
