package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/kabupicks/pkg/httputil"
	"github.com/wonny/kabupicks/pkg/logger"
)

const sampleNewsJSON = `[
  {"code": "7203", "title": "業績予想を上方修正", "summary": "通期見通しを引き上げ", "date": "2026-03-10T09:00:00Z"},
  {"code": "9984", "title": "減益の見通し", "date": "2026-03-09", "polarity": "neg"},
  {"code": "", "title": "コードなし", "date": "2026-03-10"},
  {"code": "6758", "title": "日付不正", "date": "not-a-date"}
]`

func TestParseJSONNews(t *testing.T) {
	items := parseJSONNews([]byte(sampleNewsJSON))
	require.Len(t, items, 2, "rows without code or with a bad date are dropped")

	assert.Equal(t, "7203", items[0].Code)
	assert.Equal(t, PolarityPositive, items[0].Polarity, "polarity inferred from the title")
	assert.Equal(t, "2026-03-10T09:00:00Z", items[0].PublishedAt.Format("2006-01-02T15:04:05Z07:00"))

	assert.Equal(t, PolarityNegative, items[1].Polarity, "explicit polarity wins")
}

func TestParseJSONNewsMalformed(t *testing.T) {
	assert.Empty(t, parseJSONNews([]byte("not json")))
	assert.Empty(t, parseJSONNews([]byte(`{"code": "7203"}`)))
}

func TestParseHTMLNews(t *testing.T) {
	html := `<html><body>
<table class="s_news_list">
  <tr>
    <td class="oncodetip_code-data1" data-code="7203">トヨタ</td>
    <td><a href="/news/1">最高益を更新</a> <time datetime="2026-03-10T09:30:00Z">09:30</time></td>
  </tr>
  <tr>
    <td class="oncodetip_code-data1">9984</td>
    <td><a href="/news/2">赤字転落の恐れ</a></td>
  </tr>
  <tr><td>ヘッダー行</td></tr>
</table>
</body></html>`

	items, err := parseHTMLNews([]byte(html))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "7203", items[0].Code)
	assert.Equal(t, "最高益を更新", items[0].Title)
	assert.Equal(t, PolarityPositive, items[0].Polarity)
	assert.Equal(t, "2026-03-10T09:30:00Z", items[0].PublishedAt.Format("2006-01-02T15:04:05Z07:00"))

	assert.Equal(t, "9984", items[1].Code, "code text used when the data attribute is absent")
	assert.Equal(t, PolarityNegative, items[1].Polarity)
}

func TestFetchLiveJSONFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleNewsJSON))
	}))
	defer srv.Close()

	f := NewNewsFetcher(httputil.New("test", logger.NewNop()), srv.URL, t.TempDir(), logger.NewNop())
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchFallsBackToSample(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "news.json"), []byte(sampleNewsJSON), 0o644))

	f := NewNewsFetcher(httputil.New("test", logger.NewNop()), "", dir, logger.NewNop())
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchNoNewsAnywhere(t *testing.T) {
	f := NewNewsFetcher(httputil.New("test", logger.NewNop()), "", t.TempDir(), logger.NewNop())
	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoNews)
}
