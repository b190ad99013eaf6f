package source

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/search"
)

// defaultGAODays is the look-back window when neither --days nor
// configuration sets one.
const defaultGAODays = 7

// GAOReports syncs report metadata from gao.gov.
type GAOReports struct {
	BaseURL string
	Days    int
}

// Name implements Source.
func (g *GAOReports) Name() string { return "gao_reports" }

// Index implements Source.
func (g *GAOReports) Index() string { return search.IndexDocuments }

// Sync implements Source.
func (g *GAOReports) Sync(ctx context.Context, run *Run) (*Result, error) {
	log := zap.L().With(zap.String("component", "source.gao"))

	var ids []string
	if run.Opts.ID != "" {
		ids = []string{run.Opts.ID}
	} else {
		begin, end := g.window(run)
		var err error
		ids, err = g.listing(ctx, run, begin, end)
		if err != nil {
			run.Report.Abort("Couldn't fetch the GAO report listing, can't go on.", map[string]any{
				"begin": begin.Format("2006-01-02"),
				"end":   end.Format("2006-01-02"),
				"error": err.Error(),
			})
			return &Result{}, nil
		}
		if run.Opts.Limit > 0 && len(ids) > run.Opts.Limit {
			ids = ids[:run.Opts.Limit]
		}
	}

	log.Info("fetching GAO reports", zap.Int("count", len(ids)))

	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := g.syncReport(ctx, run, id)
		if err != nil {
			return nil, err
		}
		if ok {
			count++
		}
	}

	return &Result{Count: count, Summary: fmt.Sprintf("Created or updated %d GAO reports", count)}, nil
}

// window returns the listing's date range: a whole year with --year,
// otherwise the last N days ending today.
func (g *GAOReports) window(run *Run) (time.Time, time.Time) {
	loc := run.Now.Location()
	if run.Opts.Year > 0 {
		return time.Date(run.Opts.Year, time.January, 1, 0, 0, 0, 0, loc),
			time.Date(run.Opts.Year, time.December, 31, 0, 0, 0, 0, loc)
	}
	days := run.Opts.Days
	if days <= 0 {
		days = g.Days
	}
	if days <= 0 {
		days = defaultGAODays
	}
	end := midnight(run.Now)
	return end.AddDate(0, 0, -days), end
}

// listing collects the content ids of every report listed in the range.
func (g *GAOReports) listing(ctx context.Context, run *Run, begin, end time.Time) ([]string, error) {
	url := fmt.Sprintf("%s/browse/date/custom?adv_begin_date=%s&adv_end_date=%s&rows=15000",
		strings.TrimRight(g.BaseURL, "/"), begin.Format("01/02/2006"), end.Format("01/02/2006"))
	dest := filepath.Join(run.DataDir, "gao", begin.Format("20060102")+"-"+end.Format("20060102")+".html")

	art, err := run.Fetch.Fetch(ctx, url, run.fetchOptions(dest, false))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(art.Body))
	if err != nil {
		return nil, eris.Wrap(err, "gao: parse listing")
	}

	var ids []string
	doc.Find("div.listing").Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr("content_id"); ok && strings.TrimSpace(id) != "" {
			ids = append(ids, strings.TrimSpace(id))
		}
	})
	return uniq(ids), nil
}

// syncReport fetches one report's metadata and saves it as a document.
func (g *GAOReports) syncReport(ctx context.Context, run *Run, gaoID string) (bool, error) {
	log := zap.L().With(zap.String("component", "source.gao"), zap.String("gao_id", gaoID))

	url := strings.TrimRight(g.BaseURL, "/") + "/api/id/" + gaoID
	dest := filepath.Join(run.DataDir, "gao", gaoID, "report.json")
	art, err := run.Fetch.Fetch(ctx, url, run.fetchOptions(dest, true))
	if err != nil {
		run.Report.Fail("Couldn't download JSON of report", map[string]any{"gao_id": gaoID, "url": url, "error": err.Error()})
		observe(g.Name(), metrics.ItemFailed)
		return false, nil
	}
	meta, err := fetcher.UnwrapSingle[gaoMetadata](art)
	if err != nil {
		run.Report.Fail("Couldn't read report metadata", map[string]any{"gao_id": gaoID, "url": url, "error": err.Error()})
		observe(g.Name(), metrics.ItemFailed)
		return false, nil
	}

	doc, ok := documentFromGAO(gaoID, meta, run.Now.Location())
	if !ok {
		log.Debug("no landing URL or PDF, skipping")
		observe(g.Name(), metrics.ItemSkipped)
		return false, nil
	}

	if _, err := run.Recon.SaveDocument(ctx, doc); err != nil {
		return false, err
	}
	projection, err := model.Project(doc, model.Fields(model.KindDocument))
	if err != nil {
		return false, err
	}
	run.Batch.Enqueue(ctx, doc.DocumentID, projection)
	observe(g.Name(), metrics.ItemSaved)
	log.Debug("saved report", zap.String("document_id", doc.DocumentID))
	return true, nil
}

// gaoMetadata is the per-report JSON served by the GAO API.
type gaoMetadata struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	DocDate           string   `json:"docdate"`
	ActualReleaseDate string   `json:"actual_release_date"`
	ReportNumber      string   `json:"rptno"`
	DocumentType      string   `json:"document_type"`
	Topics            []string `json:"topics"`
	BucketTerm        string   `json:"bucket_term"`
	URL               string   `json:"url"`
	TextURL           string   `json:"text_url"`
	PDFURL            string   `json:"pdf_url"`
	SupplementURL     string   `json:"supplement_url"`
	YoutubeID         string   `json:"youtube_id"`
	AdditionalLinks   any      `json:"additional_links"`
}

var gaoDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
}

// documentFromGAO maps report metadata onto a document. Reports with
// neither a landing page nor a PDF yield false.
func documentFromGAO(gaoID string, meta *gaoMetadata, loc *time.Location) (*model.Document, bool) {
	landing := strings.TrimSpace(meta.URL)
	textURL := strings.TrimSpace(meta.TextURL)
	pdfURL := strings.TrimSpace(meta.PDFURL)

	// The API sometimes serves the text rendition, or an unrelated link,
	// in pdf_url.
	switch {
	case strings.HasSuffix(pdfURL, ".txt"):
		textURL = pdfURL
		pdfURL = ""
	case pdfURL != "" && !strings.HasSuffix(pdfURL, ".pdf"):
		pdfURL = ""
	}

	if landing == "" && pdfURL == "" {
		return nil, false
	}

	categories := append([]string{}, meta.Topics...)
	if meta.BucketTerm != "" {
		categories = append(categories, meta.BucketTerm)
	}

	doc := &model.Document{
		DocumentID:       "GAO-" + gaoID,
		DocumentType:     model.DocumentTypeGAOReport,
		DocumentTypeName: model.DocumentTypeGAOReportName,
		GAOID:            gaoID,
		ReportNumber:     meta.ReportNumber,
		Title:            meta.Title,
		Categories:       categories,
		URL:              landing,
		SourceURL:        pdfURL,
		URLs: model.DocumentURLs{
			Landing:    landing,
			PDF:        pdfURL,
			Text:       textURL,
			Supplement: meta.SupplementURL,
		},
		YoutubeID:       meta.YoutubeID,
		AdditionalLinks: stringList(meta.AdditionalLinks),
	}
	if doc.URL == "" {
		doc.URL = pdfURL
	}
	if meta.Description != "" {
		doc.Description = stripTags(meta.Description)
	}
	if t, ok := parseDate(meta.DocDate, loc, gaoDateLayouts...); ok {
		doc.PublishedOn = t.Format("2006-01-02")
	}
	if t, ok := parseDate(meta.ActualReleaseDate, loc, gaoDateLayouts...); ok {
		posted := t.UTC()
		doc.PostedAt = &posted
	}
	return doc, true
}

// stringList accepts additional_links as a single string or a list.
func stringList(v any) []string {
	switch links := v.(type) {
	case string:
		if s := strings.TrimSpace(links); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, l := range links {
			if s, ok := l.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
