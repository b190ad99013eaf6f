package reconcile

import (
	"context"
	"regexp"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/store"
)

var billIDPattern = regexp.MustCompile(`^([a-z]+)(\d+)-(\d+)$`)

// BillFromID builds a bare bill from an id like "hr1234-113".
func BillFromID(billID string) (*model.Bill, error) {
	m := billIDPattern.FindStringSubmatch(billID)
	if m == nil {
		return nil, eris.Errorf("reconcile: malformed bill id %q", billID)
	}
	number, _ := strconv.Atoi(m[2])
	congress, _ := strconv.Atoi(m[3])
	return &model.Bill{
		BillID:   billID,
		BillType: m[1],
		Number:   number,
		Congress: congress,
		Code:     m[1] + m[2],
		Chamber:  model.ChamberForType(m[1]),
	}, nil
}

// StubTitles are whatever titles the referencing document carried.
type StubTitles struct {
	Short    string
	Official string
}

// BillRef returns the basic fields of billID for embedding. A bill missing
// from the store is created as an abbreviated stub first; created reports
// whether that happened.
func (r *Reconciler) BillRef(ctx context.Context, billID string, titles StubTitles) (ref map[string]any, created bool, err error) {
	bill := &model.Bill{BillID: billID}
	ok, err := store.Load(ctx, r.store, bill)
	if err != nil {
		return nil, false, eris.Wrapf(err, "reconcile: find bill %s", billID)
	}
	if !ok {
		bill, err = BillFromID(billID)
		if err != nil {
			return nil, false, err
		}
		bill.Abbreviated = true
		bill.ShortTitle = titles.Short
		bill.OfficialTitle = titles.Official
		bill.UpdatedAt = r.now()
		if err := store.Save(ctx, r.store, bill); err != nil {
			return nil, false, eris.Wrapf(err, "reconcile: create bill %s", billID)
		}
		created = true
	}
	ref, err = model.Project(bill, model.BillBasicFields)
	if err != nil {
		return nil, false, err
	}
	return ref, created, nil
}

// Bill loads a bill by id.
func (r *Reconciler) Bill(ctx context.Context, billID string) (*model.Bill, bool, error) {
	bill := &model.Bill{BillID: billID}
	ok, err := store.Load(ctx, r.store, bill)
	if err != nil {
		return nil, false, eris.Wrapf(err, "reconcile: find bill %s", billID)
	}
	return bill, ok, nil
}

// BillsForCongress lists the full (non-abbreviated) bills of a congress.
func (r *Reconciler) BillsForCongress(ctx context.Context, congress, limit int) ([]*model.Bill, error) {
	bills, err := store.FindRecords(ctx, r.store, model.KindBill, store.Query{
		Where:   map[string]any{"abbreviated": false, "session": congress},
		OrderBy: "bill_id",
		Limit:   limit,
	}, func() *model.Bill { return &model.Bill{} })
	return bills, eris.Wrapf(err, "reconcile: bills for congress %d", congress)
}

// billVersionFields are the bill fields derived from its text versions.
var billVersionFields = []string{
	"version_info", "version_codes", "versions_count", "last_version", "last_version_on", "updated_at",
}

// VersionText pairs a parsed version with its extracted text.
type VersionText struct {
	Version *model.BillVersion
	Text    string
}

// SaveBillVersions orders versions by issue date and writes them. Only the
// chronologically last version keeps its full text. The bill is updated with
// the version roll-up and the last version is returned.
func (r *Reconciler) SaveBillVersions(ctx context.Context, bill *model.Bill, versions []VersionText) (VersionText, error) {
	if len(versions) == 0 {
		return VersionText{}, eris.Errorf("reconcile: no versions for %s", bill.BillID)
	}
	sorted := make([]VersionText, len(versions))
	copy(sorted, versions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version.IssuedOn < sorted[j].Version.IssuedOn
	})

	basic, err := model.Project(bill, model.BillBasicFields)
	if err != nil {
		return VersionText{}, err
	}

	now := r.now()
	last := sorted[len(sorted)-1]
	infos := make([]model.VersionInfo, 0, len(sorted))
	codes := make([]string, 0, len(sorted))
	for i, vt := range sorted {
		v := vt.Version
		v.BillID = bill.BillID
		v.BillType = bill.BillType
		v.Number = bill.Number
		v.Congress = bill.Congress
		v.Chamber = bill.Chamber
		v.Bill = basic
		v.UpdatedAt = now
		v.FullText = ""
		if i == len(sorted)-1 {
			v.FullText = vt.Text
		}
		if _, err := r.Upsert(ctx, v); err != nil {
			return VersionText{}, err
		}
		infos = append(infos, v.Info())
		codes = append(codes, v.VersionCode)
	}

	lastInfo := last.Version.Info()
	bill.VersionInfo = infos
	bill.VersionCodes = codes
	bill.VersionsCount = len(sorted)
	bill.LastVersion = &lastInfo
	bill.LastVersionOn = lastInfo.IssuedOn
	bill.UpdatedAt = now
	if _, err := r.Patch(ctx, bill, billVersionFields); err != nil {
		return VersionText{}, err
	}
	return last, nil
}
