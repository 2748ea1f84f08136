package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiman-zohra3/todo/internal/config"
	"github.com/aiman-zohra3/todo/internal/errs"
)

type fakeSource struct {
	url     string
	html    string
	shot    []byte
	shotErr error
	htmlErr error
}

func (f fakeSource) URL() string                 { return f.url }
func (f fakeSource) Content() (string, error)    { return f.html, f.htmlErr }
func (f fakeSource) Screenshot() ([]byte, error) { return f.shot, f.shotErr }

func testBundle() Bundle {
	return Bundle{
		Test:       "TestLogin/invalid credentials",
		SessionID:  "sess-1",
		Category:   errs.CategoryRegression,
		Code:       errs.Assertion,
		Failure:    "expected auth_error",
		URL:        "http://localhost:5000/todos",
		CapturedAt: time.Date(2025, 12, 31, 10, 0, 0, 0, time.UTC),
		Screenshot: []byte("\x89PNG"),
		HTML:       "<html></html>",
	}
}

func TestCapture_ClassifiesFailure(t *testing.T) {
	t.Parallel()
	src := fakeSource{url: "http://x/users/login", html: "<p>hi</p>", shot: []byte("png")}
	b, err := Capture(context.Background(), src, "TestA", "s1", errs.New(errs.Timeout, "waiting for menu"))
	require.NoError(t, err)
	assert.Equal(t, errs.CategoryInfrastructure, b.Category)
	assert.Equal(t, errs.Timeout, b.Code)
	assert.Equal(t, "<p>hi</p>", b.HTML)
	assert.Equal(t, []byte("png"), b.Screenshot)
	assert.Equal(t, "http://x/users/login", b.URL)
}

func TestCapture_KeepsPartialEvidence(t *testing.T) {
	t.Parallel()
	src := fakeSource{html: "<p>only html</p>", shotErr: errors.New("page crashed")}
	b, err := Capture(context.Background(), src, "TestB", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>only html</p>", b.HTML)
	assert.Equal(t, "test failed", b.Failure)

	src.htmlErr = errors.New("target closed")
	_, err = Capture(context.Background(), src, "TestB", "", nil)
	assert.Error(t, err)
}

func TestBundle_Prefix(t *testing.T) {
	t.Parallel()
	b := testBundle()
	assert.Equal(t, "TestLogin_invalid_credentials/20251231T100000.000Z", b.Prefix())
	b.Test = "///"
	assert.True(t, strings.HasPrefix(b.Prefix(), "unnamed/"))
}

func TestLocalSink_WritesBundle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	paths, err := LocalSink{Dir: dir}.Save(context.Background(), testBundle())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	data, err := os.ReadFile(filepath.Join(dir, "TestLogin_invalid_credentials", "20251231T100000.000Z", "summary.json"))
	require.NoError(t, err)
	var summary Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, errs.CategoryRegression, summary.Category)
	assert.Equal(t, "sess-1", summary.SessionID)
}

func newFakeS3(t *testing.T, bucket string) *s3.Client {
	t.Helper()

	backend := s3mem.New()
	faker := gofakes3.New(backend)
	ts := httptest.NewServer(faker.Server())
	t.Cleanup(ts.Close)

	ctx := context.Background()
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ts.URL)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
	return client
}

func TestS3Sink_UploadsBundle(t *testing.T) {
	t.Parallel()
	sink := NewS3SinkFromClient(newFakeS3(t, "artifacts"), "artifacts", "/ci/run-1/")

	locs, err := sink.Save(context.Background(), testBundle())
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Equal(t, "s3://artifacts/ci/run-1/TestLogin_invalid_credentials/20251231T100000.000Z/summary.json", locs[0])

	html, err := sink.getObject(context.Background(), "ci/run-1/TestLogin_invalid_credentials/20251231T100000.000Z/page.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(html))

	_, err = sink.getObject(context.Background(), "ci/run-1/missing")
	assert.ErrorIs(t, err, errObjectNotFound)
}

func TestMultiSink_JoinsLocations(t *testing.T) {
	t.Parallel()
	sink := MultiSink{
		LocalSink{Dir: t.TempDir()},
		NewS3SinkFromClient(newFakeS3(t, "multi"), "multi", ""),
	}
	locs, err := sink.Save(context.Background(), testBundle())
	require.NoError(t, err)
	assert.Len(t, locs, 6)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	sink, err := FromConfig(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Nil(t, sink)

	cfg.ArtifactsDir = t.TempDir()
	sink, err = FromConfig(context.Background(), &cfg)
	require.NoError(t, err)
	assert.IsType(t, LocalSink{}, sink)
}
