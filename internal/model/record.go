// Package model defines the canonical records persisted by the ingestion
// engine. Each record type is a closed variant with an explicit whitelist of
// the fields it may persist.
package model

import (
	"encoding/json"
	"slices"
	"sort"

	"github.com/rotisserie/eris"
)

// Kind names a record variant and the collection it is stored in.
type Kind string

const (
	KindVote        Kind = "votes"
	KindFloorUpdate Kind = "floor_updates"
	KindDocument    Kind = "documents"
	KindBill        Kind = "bills"
	KindBillVersion Kind = "bill_versions"
	KindLegislator  Kind = "legislators"
	KindReport      Kind = "reports"
)

// Record is implemented by every canonical record variant.
type Record interface {
	Kind() Kind
	// Key returns the natural key, unique within the kind.
	Key() string
}

// persisted lists the fields each variant may write to the primary store.
var persisted = map[Kind][]string{
	KindVote: {
		"roll_id", "vote_type", "how", "chamber", "year", "number", "session", "subsession",
		"roll_type", "question", "result", "required", "voted_at", "voter_ids", "voters",
		"vote_breakdown", "bill_id", "bill", "updated_at",
	},
	KindFloorUpdate: {
		"id", "chamber", "session", "legislative_day", "timestamp", "events",
		"bill_ids", "roll_ids", "legislator_ids",
	},
	KindDocument: {
		"document_id", "document_type", "document_type_name", "gao_id", "report_number",
		"title", "description", "categories", "published_on", "posted_at", "url",
		"source_url", "urls", "youtube_id", "additional_links", "updated_at",
	},
	KindBill: {
		"bill_id", "bill_type", "number", "session", "chamber", "code", "abbreviated",
		"short_title", "official_title", "popular_title", "introduced_on", "sponsor",
		"sponsor_id", "summary", "keywords", "last_action", "version_info", "version_codes",
		"versions_count", "last_version", "last_version_on", "updated_at",
	},
	KindBillVersion: {
		"bill_version_id", "bill_id", "bill_type", "number", "session", "chamber",
		"version_code", "version_name", "issued_on", "urls", "full_text", "bill", "updated_at",
	},
	KindLegislator: {
		"bioguide_id", "govtrack_id", "lis_id", "thomas_id", "title", "first_name",
		"nickname", "last_name", "name_suffix", "state", "party", "chamber", "district",
		"in_office",
	},
	KindReport: {
		"id", "source", "status", "message", "details", "read", "created_at",
	},
}

// Basic field subsets embedded into other records.
var (
	LegislatorBasicFields = []string{
		"govtrack_id", "bioguide_id", "title", "first_name", "nickname", "last_name",
		"name_suffix", "state", "party", "chamber", "district",
	}

	BillBasicFields = []string{
		"bill_id", "bill_type", "number", "session", "chamber", "abbreviated",
		"short_title", "official_title", "popular_title", "introduced_on", "last_version_on",
	}
)

// Fields returns the persisted-field whitelist of a kind.
func Fields(k Kind) []string {
	return slices.Clone(persisted[k])
}

// Encode serializes a record and rejects any field outside its whitelist.
func Encode(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrapf(err, "model: encode %s", r.Kind())
	}
	allowed, ok := persisted[r.Kind()]
	if !ok {
		return nil, eris.Errorf("model: unknown kind %q", r.Kind())
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "model: encode %s", r.Kind())
	}
	var extra []string
	for k := range doc {
		if !slices.Contains(allowed, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, eris.Errorf("model: %s fields not persisted: %v", r.Kind(), extra)
	}
	return data, nil
}

// Decode unmarshals a stored document into dst.
func Decode(data []byte, dst Record) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "model: decode %s", dst.Kind())
	}
	return nil
}

// Project returns the subset of v's JSON fields named in fields. Fields that
// are absent or empty in v are omitted.
func Project(v any, fields []string) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "model: project")
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "model: project")
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if val, ok := doc[f]; ok {
			out[f] = val
		}
	}
	return out, nil
}
