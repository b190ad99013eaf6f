package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/search"
)

var errNoFloorLog = errors.New("floor: no entry-content container")

// FloorUpdates polls the Senate floor log and records each new paragraph.
type FloorUpdates struct {
	URL string
}

// Name implements Source.
func (f *FloorUpdates) Name() string { return "floor_updates" }

// Index implements Source.
func (f *FloorUpdates) Index() string { return search.IndexFloorUpdates }

// Sync implements Source.
func (f *FloorUpdates) Sync(ctx context.Context, run *Run) (*Result, error) {
	log := zap.L().With(zap.String("component", "source.floor"))

	art, err := run.Fetch.Fetch(ctx, f.pageURL(run.Now), fetcher.Options{Debug: run.Opts.Debug})
	if err != nil {
		run.Report.Abort("Network error on fetching the floor log, can't go on.", map[string]any{"error": err.Error()})
		return &Result{}, nil
	}

	log.Debug("parsing floor log", zap.Int("bytes", len(art.Body)))
	days, warnings, err := parseFloorLog(art.Body, run.Now.Location())
	if err != nil {
		run.Report.Abort("Can't locate title of the floor log, can't go on.", map[string]any{"html": string(art.Body)})
		return &Result{}, nil
	}
	for _, w := range warnings {
		run.Report.Warn(w.Message, w.Fields)
	}

	p := run.point()
	today := midnight(run.Now)
	count := 0

	for _, day := range sortedDays(days) {
		t, err := time.ParseInLocation("2006-01-02", day, run.Now.Location())
		if err != nil {
			continue
		}
		if t.After(today.AddDate(0, 0, 1)) || t.Before(today.AddDate(0, 0, -1)) {
			continue
		}

		fd, err := run.Recon.LoadFloorDay(ctx, day)
		if err != nil {
			return nil, err
		}

		for _, text := range days[day] {
			legislators, err := f.extractLegislators(ctx, run, text)
			if err != nil {
				return nil, err
			}
			fu := &model.FloorUpdate{
				Chamber:       model.ChamberSenate,
				Congress:      p.Congress,
				Events:        []string{text},
				BillIDs:       extractBills(text, p.Congress),
				RollIDs:       extractRolls(text, p.Year),
				LegislatorIDs: legislators,
			}
			inserted, err := run.Recon.InsertFloorUpdate(ctx, fd, fu)
			if err != nil {
				run.Report.Fail("Failed to save floor update", map[string]any{
					"legislative_day": day,
					"events":          fu.Events,
					"error":           err.Error(),
				})
				observe(f.Name(), metrics.ItemFailed)
				continue
			}
			if !inserted {
				if run.Opts.Debug {
					log.Debug("found a dupe, ignoring", zap.String("legislative_day", day))
				}
				observe(f.Name(), metrics.ItemSkipped)
				continue
			}

			projection, err := model.Project(fu, model.Fields(model.KindFloorUpdate))
			if err != nil {
				return nil, err
			}
			run.Batch.Enqueue(ctx, fu.ID, projection)
			observe(f.Name(), metrics.ItemSaved)
			count++
			log.Debug("new floor update",
				zap.String("legislative_day", day),
				zap.Time("timestamp", fu.Timestamp),
			)
		}
	}

	return &Result{Count: count, Summary: fmt.Sprintf("Saved %d new floor updates", count)}, nil
}

// pageURL appends a cache-busting parameter outside the page's cache window.
func (f *FloorUpdates) pageURL(now time.Time) string {
	if calendar.IsCacheWindow(now) {
		return f.URL
	}
	sep := "?"
	if strings.Contains(f.URL, "?") {
		sep = "&"
	}
	return f.URL + sep + "break_cache=" + strconv.FormatInt(now.Unix(), 10)
}

var (
	floorBoilerplate = []string{"senate floor proceedings", "today's senate floor log", ""}
	floorFooters     = []*regexp.Regexp{
		regexp.MustCompile(`(?i)archived floor logs`),
		regexp.MustCompile(`(?i)floor lof is for reference only`),
	}
	centeredStyle = regexp.MustCompile(`(?i)text-align:\s*center`)

	floorDateLayouts = []string{
		"Monday, January 2, 2006",
		"Monday, Jan 2, 2006",
		"Monday January 2, 2006",
		"January 2, 2006",
		"Jan 2, 2006",
		"1/2/2006",
		"2006-01-02",
	}
)

type parseWarning struct {
	Message string
	Fields  map[string]any
}

// parseFloorLog groups the log's paragraphs by legislative day. A centered
// paragraph that reads as a date opens a new day; a paragraph seen before
// any date is skipped with a warning.
func parseFloorLog(body []byte, loc *time.Location) (map[string][]string, []parseWarning, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, eris.Wrap(err, "floor: parse html")
	}
	container := doc.Find("div.entry-content").First()
	if container.Length() == 0 {
		return nil, nil, errNoFloorLog
	}

	days := make(map[string][]string)
	var warnings []parseWarning
	current := ""

	container.Parent().Find("p").Each(func(_ int, item *goquery.Selection) {
		raw := item.Text()
		text := strings.TrimSpace(raw)
		if isFloorBoilerplate(text) {
			return
		}

		style, _ := item.Attr("style")
		align, _ := item.Attr("align")
		if centeredStyle.MatchString(style) || strings.EqualFold(align, "center") {
			if t, ok := parseDate(text, loc, floorDateLayouts...); ok {
				current = t.Format("2006-01-02")
				if _, seen := days[current]; !seen {
					days[current] = nil
				}
			} else {
				zap.L().Debug("skipping center-aligned paragraph", zap.String("text", text))
			}
			return
		}

		if current == "" {
			warnings = append(warnings, parseWarning{
				Message: "Unexpected HTML, got to an update without a date, skipping",
				Fields:  map[string]any{"html": text},
			})
			return
		}
		days[current] = append(days[current], cleanFloorText(raw))
	})

	return days, warnings, nil
}

func isFloorBoilerplate(text string) bool {
	lower := strings.ToLower(text)
	for _, b := range floorBoilerplate {
		if lower == b {
			return true
		}
	}
	for _, r := range floorFooters {
		if r.MatchString(text) {
			return true
		}
	}
	return false
}

func sortedDays(days map[string][]string) []string {
	out := make([]string, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

var (
	floorBillPattern    = regexp.MustCompile(`(?i)((S\.|H\.)(\s?J\.|\s?R\.|\s?Con\.| ?)(\s?Res\.?)*\s?\d+)`)
	floorConPattern     = regexp.MustCompile(`(?i)con`)
	floorRollPattern    = regexp.MustCompile(`(?i)roll\s+call\s+vote\s+(?:no\.|#)\s*(\d+)`)
	floorSenatorPattern = regexp.MustCompile(`\bSen(?:ator|\.)\s+([A-Z][A-Za-z'\-]+)`)
)

// extractBills finds bill citations such as "S. 47" or "H.J.Res. 2".
func extractBills(text string, congress int) []string {
	var ids []string
	for _, code := range uniq(floorBillPattern.FindAllString(text, -1)) {
		code = floorConPattern.ReplaceAllString(code, "c")
		code = strings.ToLower(billCodeCleaner.Replace(code))
		ids = append(ids, fmt.Sprintf("%s-%d", code, congress))
	}
	return uniq(ids)
}

// extractRolls finds explicit roll call numbers, which belong to the
// current legislative year.
func extractRolls(text string, year int) []string {
	var ids []string
	for _, m := range floorRollPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, fmt.Sprintf("s%d-%d", n, year))
	}
	return uniq(ids)
}

// extractLegislators resolves "Senator Last" mentions that name exactly one
// sitting senator.
func (f *FloorUpdates) extractLegislators(ctx context.Context, run *Run, text string) ([]string, error) {
	var ids []string
	for _, m := range floorSenatorPattern.FindAllStringSubmatch(text, -1) {
		leg, err := run.Legislators.SenatorByLastName(ctx, m[1])
		if err != nil {
			return nil, err
		}
		if leg != nil {
			ids = append(ids, leg.BioguideID)
		}
	}
	return uniq(ids), nil
}
