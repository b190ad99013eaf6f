package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/reconcile"
	"github.com/sells-group/capitol-sync/internal/search"
)

// knownMissingMODS is a version GPO publishes without metadata; it is
// skipped without a warning.
const knownMissingMODS = "hr81-112-enr"

// BillText loads the full text of bill versions from a local GPO mirror.
type BillText struct{}

// Name implements Source.
func (b *BillText) Name() string { return "bill_text" }

// Index implements Source.
func (b *BillText) Index() string { return search.IndexBills }

// Sync implements Source.
func (b *BillText) Sync(ctx context.Context, run *Run) (*Result, error) {
	log := zap.L().With(zap.String("component", "source.billtext"))

	congress := run.Opts.Congress
	if congress <= 0 {
		congress = run.point().Congress
	}

	var bills []*model.Bill
	if run.Opts.ID != "" {
		bill, ok, err := run.Recon.Bill(ctx, run.Opts.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			run.Report.Note("Bill not found, nothing to load", map[string]any{"bill_id": run.Opts.ID})
		} else {
			bills = []*model.Bill{bill}
			congress = bill.Congress
		}
	} else {
		var err error
		bills, err = run.Recon.BillsForCongress(ctx, congress, run.Opts.Limit)
		if err != nil {
			return nil, err
		}
	}

	log.Info("loading bill text", zap.Int("congress", congress), zap.Int("bills", len(bills)))

	billCount, versionCount := 0, 0
	for _, bill := range bills {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := b.syncBill(ctx, run, bill)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			billCount++
			versionCount += n
		}
	}

	return &Result{
		Count: billCount,
		Summary: fmt.Sprintf("Loaded in full text of %d bills (%d versions) for the %s Congress",
			billCount, versionCount, ordinal(congress)),
	}, nil
}

func billDir(dataDir string, bill *model.Bill) string {
	return filepath.Join(dataDir, "gpo", "BILLS", strconv.Itoa(bill.Congress), bill.BillType)
}

// syncBill reads every mirrored version of bill, saves them, and indexes
// the bill with the latest version's text. It returns the number of
// versions saved.
func (b *BillText) syncBill(ctx context.Context, run *Run, bill *model.Bill) (int, error) {
	log := zap.L().With(zap.String("component", "source.billtext"), zap.String("bill_id", bill.BillID))

	dir := billDir(run.DataDir, bill)
	pattern := filepath.Join(dir, fmt.Sprintf("%s%d-%d-[a-z]*.htm", bill.BillType, bill.Number, bill.Congress))
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		// GPO has nothing for this bill yet.
		observe(b.Name(), metrics.ItemSkipped)
		return 0, nil
	}

	var versions []reconcile.VersionText
	for _, file := range files {
		v, ok := b.readVersion(run, dir, file)
		if ok {
			versions = append(versions, v)
		}
	}

	if len(versions) == 0 {
		run.Report.Warn(fmt.Sprintf("No versions with a valid date found for bill %s, SKIPPING", bill.BillID),
			map[string]any{"bill_id": bill.BillID})
		observe(b.Name(), metrics.ItemSkipped)
		return 0, nil
	}

	last, err := run.Recon.SaveBillVersions(ctx, bill, versions)
	if err != nil {
		return 0, err
	}

	projection, err := billProjection(bill, last.Text)
	if err != nil {
		return 0, err
	}
	run.Batch.Enqueue(ctx, bill.BillID, projection)
	observe(b.Name(), metrics.ItemSaved)
	log.Debug("indexed bill", zap.Int("versions", len(versions)), zap.String("last_version_on", bill.LastVersionOn))
	return len(versions), nil
}

// readVersion loads one version's MODS metadata and text. Versions without
// usable metadata are reported and skipped.
func (b *BillText) readVersion(run *Run, dir, file string) (reconcile.VersionText, bool) {
	id := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	code := id[strings.LastIndex(id, "-")+1:]

	modsBody, err := os.ReadFile(filepath.Join(dir, id+".mods.xml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if id != knownMissingMODS {
				run.Report.Warn(fmt.Sprintf("No MODS data available for %s, SKIPPING", id), nil)
			}
		} else {
			run.Report.Warn(fmt.Sprintf("Couldn't read MODS data for %s, SKIPPING", id), map[string]any{"error": err.Error()})
		}
		return reconcile.VersionText{}, false
	}

	issuedOn, urls, err := parseMODS(modsBody)
	if err != nil || issuedOn == "" {
		run.Report.Warn(fmt.Sprintf("Had MODS data but no date available for %s, SKIPPING", id), nil)
		return reconcile.VersionText{}, false
	}

	text, err := readBillText(file)
	if err != nil {
		run.Report.Warn(fmt.Sprintf("Couldn't read text of %s, SKIPPING", id), map[string]any{"error": err.Error()})
		return reconcile.VersionText{}, false
	}

	return reconcile.VersionText{
		Version: &model.BillVersion{
			BillVersionID: id,
			VersionCode:   code,
			VersionName:   model.VersionNames[code],
			IssuedOn:      issuedOn,
			URLs:          urls,
		},
		Text: text,
	}, true
}

// mods is the subset of a GPO MODS record that is read.
type mods struct {
	DateIssued []string `xml:"originInfo>dateIssued"`
	Locations  []struct {
		URLs []struct {
			Label string `xml:"displayLabel,attr"`
			Value string `xml:",chardata"`
		} `xml:"url"`
	} `xml:"location"`
}

var (
	modsHTML = regexp.MustCompile(`(?i)HTML`)
	modsXML  = regexp.MustCompile(`(?i)XML`)
	modsPDF  = regexp.MustCompile(`(?i)PDF`)

	modsDateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}
)

// parseMODS returns the issue date as YYYY-MM-DD and the rendition URLs
// keyed html, xml or pdf.
func parseMODS(body []byte) (string, map[string]string, error) {
	var m mods
	if err := fetcher.DecodeXML(body, &m); err != nil {
		return "", nil, err
	}

	issuedOn := ""
	for _, d := range m.DateIssued {
		if t, ok := parseDate(d, time.UTC, modsDateLayouts...); ok {
			issuedOn = t.Format("2006-01-02")
			break
		}
	}

	urls := make(map[string]string)
	for _, loc := range m.Locations {
		for _, u := range loc.URLs {
			value := strings.TrimSpace(u.Value)
			switch {
			case modsHTML.MatchString(u.Label):
				urls["html"] = value
			case modsXML.MatchString(u.Label):
				urls["xml"] = value
			case modsPDF.MatchString(u.Label):
				urls["pdf"] = value
			}
		}
	}
	return issuedOn, urls, nil
}

// readBillText extracts the cleaned <pre> body of a GPO HTML rendition.
func readBillText(path string) (string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return cleanBillText(doc.Find("pre").First().Text()), nil
}

var billSearchFields = []string{
	"sponsor", "summary", "keywords", "last_action",
	"version_codes", "versions_count", "last_version", "last_version_on",
}

// billProjection is the bills index document: basic fields plus the
// version roll-up and the latest version's text.
func billProjection(bill *model.Bill, text string) (map[string]any, error) {
	out, err := model.Project(bill, append(append([]string{}, model.BillBasicFields...), billSearchFields...))
	if err != nil {
		return nil, err
	}
	out["versions"] = text
	out["updated_at"] = bill.UpdatedAt
	return out, nil
}
