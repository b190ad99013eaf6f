package source

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
	"github.com/sells-group/capitol-sync/internal/store"
)

func modsDoc(date string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<mods xmlns="http://www.loc.gov/mods/v3">
  <originInfo><dateIssued>%s</dateIssued></originInfo>
  <location>
    <url displayLabel="HTML rendition">http://example.gov/bill.htm</url>
    <url displayLabel="XML rendition">http://example.gov/bill.xml</url>
    <url displayLabel="PDF rendition">http://example.gov/bill.pdf</url>
  </location>
</mods>`, date)
}

// writeVersion mirrors one GPO bill version. An empty date writes no MODS
// record at all.
func writeVersion(t *testing.T, h *harness, billType, id, date, text string) {
	t.Helper()
	dir := filepath.Join(h.dataDir, "gpo", "BILLS", "117", billType)
	writeFile(t, filepath.Join(dir, id+".htm"),
		"<html><body><pre>\n&lt;all&gt;\n  "+text+"\n</pre></body></html>")
	if date != "" {
		writeFile(t, filepath.Join(dir, id+".mods.xml"), modsDoc(date))
	}
}

func seedBills(t *testing.T, h *harness) {
	t.Helper()
	h.save(t,
		&model.Bill{BillID: "hr5-117", BillType: "hr", Number: 5, Congress: 117, Chamber: model.ChamberHouse, ShortTitle: "Equality Act"},
		&model.Bill{BillID: "hr6-117", BillType: "hr", Number: 6, Congress: 117, Chamber: model.ChamberHouse},
		&model.Bill{BillID: "hr7-117", BillType: "hr", Number: 7, Congress: 117, Chamber: model.ChamberHouse},
		&model.Bill{BillID: "hr8-117", BillType: "hr", Number: 8, Congress: 117, Chamber: model.ChamberHouse, Abbreviated: true},
	)
	writeVersion(t, h, "hr", "hr5-117-ih", "2021-01-05", "Introduced text.")
	writeVersion(t, h, "hr", "hr5-117-rh", "2021-01-02", "Reported text.")
	writeVersion(t, h, "hr", "hr5-117-eh", "2021-01-09", "Engrossed ``final'' text.")
	writeVersion(t, h, "hr", "hr5-117-enr", "", "Enrolled text.")
	writeVersion(t, h, "hr", "hr6-117-ih", "", "No metadata.")
	writeVersion(t, h, "hr", "hr6-117-rh", "not a date", "Bad metadata.")
	writeVersion(t, h, "hr", "hr8-117-ih", "2021-01-05", "Stub bill.")
}

func TestBillTextSync(t *testing.T) {
	h := newHarness(t)
	seedBills(t, h)

	out := h.run(t, &BillText{}, Options{Congress: 117})
	assert.Equal(t, report.StatusSuccess, out.Status)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, []string{report.StatusWarning, report.StatusSuccess}, h.sink.statuses())
	assert.Contains(t, h.sink.terminal().Message, "Loaded in full text of 1 bills (3 versions) for the 117th Congress")

	bill := &model.Bill{BillID: "hr5-117"}
	ok, err := store.Load(context.Background(), h.store, bill)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"rh", "ih", "eh"}, bill.VersionCodes)
	assert.Equal(t, 3, bill.VersionsCount)
	assert.Equal(t, "2021-01-09", bill.LastVersionOn)
	require.NotNil(t, bill.LastVersion)
	assert.Equal(t, "hr5-117-eh", bill.LastVersion.BillVersionID)
	assert.Equal(t, "http://example.gov/bill.pdf", bill.LastVersion.URLs["pdf"])

	// Only the chronologically last version keeps its text.
	eh := &model.BillVersion{BillVersionID: "hr5-117-eh"}
	ok, err = store.Load(context.Background(), h.store, eh)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `Engrossed "final" text.`, eh.FullText)
	assert.Equal(t, "Engrossed in House", eh.VersionName)
	assert.Equal(t, "hr5-117", eh.Bill["bill_id"])

	ih := &model.BillVersion{BillVersionID: "hr5-117-ih"}
	ok, err = store.Load(context.Background(), h.store, ih)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, ih.FullText)
	assert.Equal(t, "2021-01-05", ih.IssuedOn)

	assert.Equal(t, 3, h.store.Len(string(model.KindBillVersion)))

	doc, ok := h.index.Get(search.IndexBills, "hr5-117")
	require.True(t, ok)
	assert.Equal(t, `Engrossed "final" text.`, doc["versions"])
	assert.Equal(t, "2021-01-09", doc["last_version_on"])
	assert.Equal(t, "Equality Act", doc["short_title"])
	assert.Equal(t, 1, h.index.Count(search.IndexBills))

	warnings := h.sink.reports[0].Details["warnings"].([]report.Entry)
	messages := make([]string, 0, len(warnings))
	for _, w := range warnings {
		messages = append(messages, w.Message)
	}
	assert.ElementsMatch(t, []string{
		"No MODS data available for hr5-117-enr, SKIPPING",
		"No MODS data available for hr6-117-ih, SKIPPING",
		"Had MODS data but no date available for hr6-117-rh, SKIPPING",
		"No versions with a valid date found for bill hr6-117, SKIPPING",
	}, messages)
}

func TestBillTextSync_SingleBill(t *testing.T) {
	h := newHarness(t)
	seedBills(t, h)

	out := h.run(t, &BillText{}, Options{ID: "hr5-117"})
	assert.Equal(t, 1, out.Count)
	// hr5-117-enr has no MODS record.
	assert.Equal(t, []string{report.StatusWarning, report.StatusSuccess}, h.sink.statuses())
	assert.Contains(t, h.sink.terminal().Message, "for the 117th Congress")
}

func TestBillTextSync_UnknownBill(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, &BillText{}, Options{ID: "hr404-117"})
	assert.Equal(t, report.StatusSuccess, out.Status)
	assert.Zero(t, out.Count)
	assert.Equal(t, []string{report.StatusNote, report.StatusSuccess}, h.sink.statuses())
}

func TestBillTextSync_KnownMissingMODS(t *testing.T) {
	h := newHarness(t)
	h.save(t, &model.Bill{BillID: "hr81-112", BillType: "hr", Number: 81, Congress: 112, Chamber: model.ChamberHouse})
	dir := filepath.Join(h.dataDir, "gpo", "BILLS", "112", "hr")
	writeFile(t, filepath.Join(dir, "hr81-112-enr.htm"), "<html><body><pre>Enrolled</pre></body></html>")
	writeFile(t, filepath.Join(dir, "hr81-112-ih.htm"), "<html><body><pre>Introduced</pre></body></html>")
	writeFile(t, filepath.Join(dir, "hr81-112-ih.mods.xml"), modsDoc("2011-01-05"))

	out := h.run(t, &BillText{}, Options{Congress: 112})
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, []string{report.StatusSuccess}, h.sink.statuses())
}

func TestParseMODS(t *testing.T) {
	issued, urls, err := parseMODS([]byte(modsDoc("2013-03-04")))
	require.NoError(t, err)
	assert.Equal(t, "2013-03-04", issued)
	assert.Equal(t, map[string]string{
		"html": "http://example.gov/bill.htm",
		"xml":  "http://example.gov/bill.xml",
		"pdf":  "http://example.gov/bill.pdf",
	}, urls)

	issued, _, err = parseMODS([]byte(modsDoc("")))
	require.NoError(t, err)
	assert.Empty(t, issued)

	_, _, err = parseMODS([]byte("<mods><unclosed></mods>"))
	assert.Error(t, err)
}

func TestBillProjection(t *testing.T) {
	bill := &model.Bill{BillID: "s1-113", BillType: "s", Number: 1, Congress: 113, VersionCodes: []string{"is"}, Summary: "A summary"}
	doc, err := billProjection(bill, "full text")
	require.NoError(t, err)
	assert.Equal(t, "full text", doc["versions"])
	assert.Equal(t, "s1-113", doc["bill_id"])
	assert.Equal(t, "A summary", doc["summary"])
	assert.NotContains(t, doc, "version_info")
}
