package model

// Legislator is a member of Congress. The engine reads legislators but does
// not own their lifecycle.
type Legislator struct {
	BioguideID string `json:"bioguide_id"`
	GovtrackID string `json:"govtrack_id,omitempty"`
	LisID      string `json:"lis_id,omitempty"`
	ThomasID   string `json:"thomas_id,omitempty"`
	Title      string `json:"title,omitempty"`
	FirstName  string `json:"first_name"`
	Nickname   string `json:"nickname,omitempty"`
	LastName   string `json:"last_name"`
	NameSuffix string `json:"name_suffix,omitempty"`
	State      string `json:"state"`
	Party      string `json:"party"`
	Chamber    string `json:"chamber"`
	District   *int   `json:"district,omitempty"`
	InOffice   bool   `json:"in_office"`
}

// Kind implements Record.
func (l *Legislator) Kind() Kind { return KindLegislator }

// Key implements Record.
func (l *Legislator) Key() string { return l.BioguideID }
