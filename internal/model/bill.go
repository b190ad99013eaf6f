package model

import "time"

// Bill is a piece of legislation. Abbreviated bills are stubs created from a
// reference in another document and carry only identifying fields.
type Bill struct {
	BillID        string         `json:"bill_id"`
	BillType      string         `json:"bill_type"`
	Number        int            `json:"number"`
	Congress      int            `json:"session"`
	Chamber       string         `json:"chamber"`
	Code          string         `json:"code,omitempty"`
	Abbreviated   bool           `json:"abbreviated"`
	ShortTitle    string         `json:"short_title,omitempty"`
	OfficialTitle string         `json:"official_title,omitempty"`
	PopularTitle  string         `json:"popular_title,omitempty"`
	IntroducedOn  string         `json:"introduced_on,omitempty"`
	Sponsor       map[string]any `json:"sponsor,omitempty"`
	SponsorID     string         `json:"sponsor_id,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Keywords      []string       `json:"keywords,omitempty"`
	LastAction    map[string]any `json:"last_action,omitempty"`
	VersionInfo   []VersionInfo  `json:"version_info,omitempty"`
	VersionCodes  []string       `json:"version_codes,omitempty"`
	VersionsCount int            `json:"versions_count,omitempty"`
	LastVersion   *VersionInfo   `json:"last_version,omitempty"`
	LastVersionOn string         `json:"last_version_on,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Kind implements Record.
func (b *Bill) Kind() Kind { return KindBill }

// Key implements Record.
func (b *Bill) Key() string { return b.BillID }

// VersionInfo summarizes a bill version without its text.
type VersionInfo struct {
	BillVersionID string            `json:"bill_version_id"`
	VersionCode   string            `json:"version_code"`
	VersionName   string            `json:"version_name"`
	IssuedOn      string            `json:"issued_on"`
	URLs          map[string]string `json:"urls,omitempty"`
}

// BillVersion is one printed version of a bill.
type BillVersion struct {
	BillVersionID string            `json:"bill_version_id"`
	BillID        string            `json:"bill_id"`
	BillType      string            `json:"bill_type"`
	Number        int               `json:"number"`
	Congress      int               `json:"session"`
	Chamber       string            `json:"chamber"`
	VersionCode   string            `json:"version_code"`
	VersionName   string            `json:"version_name"`
	IssuedOn      string            `json:"issued_on"`
	URLs          map[string]string `json:"urls,omitempty"`
	FullText      string            `json:"full_text,omitempty"`
	Bill          map[string]any    `json:"bill,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Kind implements Record.
func (v *BillVersion) Kind() Kind { return KindBillVersion }

// Key implements Record.
func (v *BillVersion) Key() string { return v.BillVersionID }

// Info drops the text of a version.
func (v *BillVersion) Info() VersionInfo {
	return VersionInfo{
		BillVersionID: v.BillVersionID,
		VersionCode:   v.VersionCode,
		VersionName:   v.VersionName,
		IssuedOn:      v.IssuedOn,
		URLs:          v.URLs,
	}
}

// ChamberForType maps a bill type prefix to its chamber.
func ChamberForType(billType string) string {
	if len(billType) > 0 && billType[0] == 's' {
		return ChamberSenate
	}
	return ChamberHouse
}

// VersionNames maps GPO version codes to their printed names.
var VersionNames = map[string]string{
	"ash":   "Additional Sponsors House",
	"ath":   "Agreed to House",
	"ats":   "Agreed to Senate",
	"cdh":   "Committee Discharged House",
	"cds":   "Committee Discharged Senate",
	"cph":   "Considered and Passed House",
	"cps":   "Considered and Passed Senate",
	"eah":   "Engrossed Amendment House",
	"eas":   "Engrossed Amendment Senate",
	"eh":    "Engrossed in House",
	"ehr":   "Engrossed in House-Reprint",
	"eh_s":  "Engrossed in House (No.) Star Print [*]",
	"enr":   "Enrolled Bill",
	"es":    "Engrossed in Senate",
	"esr":   "Engrossed in Senate-Reprint",
	"es_s":  "Engrossed in Senate (No.) Star Print",
	"fah":   "Failed Amendment House",
	"fps":   "Failed Passage Senate",
	"hdh":   "Held at Desk House",
	"hds":   "Held at Desk Senate",
	"ih":    "Introduced in House",
	"ihr":   "Introduced in House-Reprint",
	"ih_s":  "Introduced in House (No.) Star Print",
	"iph":   "Indefinitely Postponed in House",
	"ips":   "Indefinitely Postponed in Senate",
	"is":    "Introduced in Senate",
	"isr":   "Introduced in Senate-Reprint",
	"is_s":  "Introduced in Senate (No.) Star Print",
	"lth":   "Laid on Table in House",
	"lts":   "Laid on Table in Senate",
	"oph":   "Ordered to be Printed House",
	"ops":   "Ordered to be Printed Senate",
	"pch":   "Placed on Calendar House",
	"pcs":   "Placed on Calendar Senate",
	"pp":    "Public Print",
	"rah":   "Referred w/Amendments House",
	"ras":   "Referred w/Amendments Senate",
	"rch":   "Reference Change House",
	"rcs":   "Reference Change Senate",
	"rdh":   "Received in House",
	"rds":   "Received in Senate",
	"re":    "Reprint of an Amendment",
	"reah":  "Re-engrossed Amendment House",
	"renr":  "Re-enrolled",
	"res":   "Re-engrossed Amendment Senate",
	"rfh":   "Referred in House",
	"rfhr":  "Referred in House-Reprint",
	"rfh_s": "Referred in House (No.) Star Print",
	"rfs":   "Referred in Senate",
	"rfsr":  "Referred in Senate-Reprint",
	"rfs_s": "Referred in Senate (No.) Star Print",
	"rh":    "Reported in House",
	"rhr":   "Reported in House-Reprint",
	"rh_s":  "Reported in House (No.) Star Print",
	"rih":   "Referral Instructions House",
	"ris":   "Referral Instructions Senate",
	"rs":    "Reported in Senate",
	"rsr":   "Reported in Senate-Reprint",
	"rs_s":  "Reported in Senate (No.) Star Print",
	"rth":   "Referred to Committee House",
	"rts":   "Referred to Committee Senate",
	"sas":   "Additional Sponsors Senate",
	"sc":    "Sponsor Change House",
	"s_p":   "Star (No.) Print of an Amendment",
}
