package model

import "time"

// Document types.
const (
	DocumentTypeGAOReport     = "gao_report"
	DocumentTypeGAOReportName = "GAO Report"
)

// Document is an oversight report.
type Document struct {
	DocumentID       string       `json:"document_id"`
	DocumentType     string       `json:"document_type"`
	DocumentTypeName string       `json:"document_type_name"`
	GAOID            string       `json:"gao_id,omitempty"`
	ReportNumber     string       `json:"report_number,omitempty"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	Categories       []string     `json:"categories"`
	PublishedOn      string       `json:"published_on,omitempty"`
	PostedAt         *time.Time   `json:"posted_at,omitempty"`
	URL              string       `json:"url"`
	SourceURL        string       `json:"source_url,omitempty"`
	URLs             DocumentURLs `json:"urls"`
	YoutubeID        string       `json:"youtube_id,omitempty"`
	AdditionalLinks  []string     `json:"additional_links,omitempty"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// DocumentURLs are the known locations of a document. Empty means unset.
type DocumentURLs struct {
	Landing    string `json:"landing,omitempty"`
	PDF        string `json:"pdf,omitempty"`
	Text       string `json:"text,omitempty"`
	Supplement string `json:"supplement,omitempty"`
}

// Kind implements Record.
func (d *Document) Kind() Kind { return KindDocument }

// Key implements Record.
func (d *Document) Key() string { return d.DocumentID }
