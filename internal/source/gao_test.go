package source

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
	"github.com/sells-group/capitol-sync/internal/store"
)

const gaoListingHTML = `<html><body>
<div class="listing" content_id="586393"><a href="/products/GAO-13-250">Budget Issues</a></div>
<div class="listing" content_id="586175"><a href="/products/GAO-13-1">Other</a></div>
<div class="listing" content_id="586393"><a href="/products/GAO-13-250">Budget Issues</a></div>
<div class="listing" content_id="111"><a href="/products/GAO-13-2">Broken</a></div>
<div class="listing">no id</div>
</body></html>`

const gaoReportJSON = `[{
  "title": "Budget Issues: Continuing Resolutions",
  "description": "<p>One</p><p>Two</p>",
  "docdate": "2013-01-18",
  "actual_release_date": "2013-01-18 10:00:00",
  "rptno": "GAO-13-250",
  "topics": ["Budget"],
  "bucket_term": "Finance",
  "url": "http://www.gao.gov/products/GAO-13-250",
  "pdf_url": "http://www.gao.gov/assets/660/651234.txt",
  "additional_links": "http://www.gao.gov/podcast"
}]`

const gaoNoLinksJSON = `{
  "title": "No links",
  "docdate": "2013-01-17",
  "pdf_url": "http://www.gao.gov/products/GAO-13-1"
}`

func gaoRoutes() map[string]route {
	return map[string]route{
		"/browse/date/custom": {contentType: "text/html", body: gaoListingHTML},
		"/api/id/586393":      {contentType: "application/json", body: gaoReportJSON},
		"/api/id/586175":      {contentType: "application/json", body: gaoNoLinksJSON},
		"/api/id/111":         {status: http.StatusInternalServerError, body: "boom"},
	}
}

func TestGAOReportsSync(t *testing.T) {
	h := newHarness(t)
	srv, rec := newServer(t, gaoRoutes())

	out := h.run(t, &GAOReports{BaseURL: srv.URL}, Options{})
	assert.Equal(t, report.StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, []string{report.StatusWarning, report.StatusSuccess}, h.sink.statuses())
	assert.Contains(t, h.sink.terminal().Message, "Created or updated 1 GAO reports")

	listing := rec.requests()[0]
	assert.Equal(t, "/browse/date/custom", listing.Path)
	assert.Equal(t, "01/15/2013", listing.Query().Get("adv_begin_date"))
	assert.Equal(t, "01/22/2013", listing.Query().Get("adv_end_date"))
	assert.Equal(t, "15000", listing.Query().Get("rows"))
	assert.Len(t, rec.requests(), 4, "duplicate listing entries are fetched once")

	_, err := os.Stat(filepath.Join(h.dataDir, "gao", "20130115-20130122.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.dataDir, "gao", "586393", "report.json"))
	assert.NoError(t, err)

	doc := &model.Document{DocumentID: "GAO-586393"}
	ok, err := store.Load(context.Background(), h.store, doc)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.DocumentTypeGAOReport, doc.DocumentType)
	assert.Equal(t, "GAO-13-250", doc.ReportNumber)
	assert.Equal(t, "http://www.gao.gov/assets/660/651234.txt", doc.URLs.Text)
	assert.Empty(t, doc.URLs.PDF)
	assert.Empty(t, doc.SourceURL)
	assert.Equal(t, "http://www.gao.gov/products/GAO-13-250", doc.URL)
	assert.Equal(t, []string{"Budget", "Finance"}, doc.Categories)
	assert.Equal(t, "One\n\nTwo", doc.Description)
	assert.Equal(t, "2013-01-18", doc.PublishedOn)
	require.NotNil(t, doc.PostedAt)
	assert.True(t, doc.PostedAt.Equal(time.Date(2013, 1, 18, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"http://www.gao.gov/podcast"}, doc.AdditionalLinks)

	assert.Equal(t, 1, h.store.Len(string(model.KindDocument)))
	_, ok = h.index.Get(search.IndexDocuments, "GAO-586393")
	assert.True(t, ok)

	failures := h.sink.reports[0].Details["failures"].([]report.Entry)
	require.Len(t, failures, 1)
	assert.Equal(t, "111", failures[0].Fields["gao_id"])
}

func TestGAOReportsSync_SingleReport(t *testing.T) {
	h := newHarness(t)
	srv, rec := newServer(t, gaoRoutes())

	out := h.run(t, &GAOReports{BaseURL: srv.URL}, Options{ID: "586393"})
	assert.Equal(t, 1, out.Count)
	require.Len(t, rec.requests(), 1)
	assert.Equal(t, "/api/id/586393", rec.requests()[0].Path)
}

func TestGAOReportsSync_Limit(t *testing.T) {
	h := newHarness(t)
	srv, rec := newServer(t, gaoRoutes())

	out := h.run(t, &GAOReports{BaseURL: srv.URL}, Options{Limit: 1})
	assert.Equal(t, 1, out.Count)
	assert.Len(t, rec.requests(), 2)
}

func TestGAOReportsSync_AbortsWithoutListing(t *testing.T) {
	h := newHarness(t)
	srv, _ := newServer(t, nil)

	out := h.run(t, &GAOReports{BaseURL: srv.URL}, Options{})
	assert.Equal(t, report.StatusFailure, out.Status)
	assert.Equal(t, "2013-01-15", h.sink.terminal().Details["begin"])
}

func TestGAOWindow(t *testing.T) {
	g := &GAOReports{Days: 3}
	run := &Run{Now: testNow}

	begin, end := g.window(run)
	assert.Equal(t, "2013-01-19", begin.Format("2006-01-02"))
	assert.Equal(t, "2013-01-22", end.Format("2006-01-02"))

	run.Opts.Days = 10
	begin, _ = g.window(run)
	assert.Equal(t, "2013-01-12", begin.Format("2006-01-02"))

	run.Opts.Year = 2012
	begin, end = g.window(run)
	assert.Equal(t, "2012-01-01", begin.Format("2006-01-02"))
	assert.Equal(t, "2012-12-31", end.Format("2006-01-02"))

	begin, _ = (&GAOReports{}).window(&Run{Now: testNow})
	assert.Equal(t, "2013-01-15", begin.Format("2006-01-02"))
}

func TestDocumentFromGAO(t *testing.T) {
	t.Run("pdf kept", func(t *testing.T) {
		doc, ok := documentFromGAO("1", &gaoMetadata{PDFURL: "http://x/report.pdf"}, time.UTC)
		require.True(t, ok)
		assert.Equal(t, "http://x/report.pdf", doc.URLs.PDF)
		assert.Equal(t, "http://x/report.pdf", doc.SourceURL)
		assert.Equal(t, "http://x/report.pdf", doc.URL, "falls back to the PDF without a landing page")
		assert.Equal(t, "GAO-1", doc.DocumentID)
		assert.Equal(t, model.DocumentTypeGAOReportName, doc.DocumentTypeName)
	})

	t.Run("text only is skipped", func(t *testing.T) {
		_, ok := documentFromGAO("2", &gaoMetadata{PDFURL: "http://x/report.txt"}, time.UTC)
		assert.False(t, ok)
	})

	t.Run("landing only", func(t *testing.T) {
		doc, ok := documentFromGAO("3", &gaoMetadata{URL: "http://x/products/3", PDFURL: "http://x/products/3"}, time.UTC)
		require.True(t, ok)
		assert.Empty(t, doc.URLs.PDF)
		assert.Empty(t, doc.Categories)
		assert.Nil(t, doc.PostedAt)
	})

	t.Run("additional links list", func(t *testing.T) {
		doc, ok := documentFromGAO("4", &gaoMetadata{
			URL:             "http://x/products/4",
			AdditionalLinks: []any{"http://a", " ", 7, "http://b"},
		}, time.UTC)
		require.True(t, ok)
		assert.Equal(t, []string{"http://a", "http://b"}, doc.AdditionalLinks)
	})
}
