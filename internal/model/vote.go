package model

import (
	"sort"
	"time"
)

// Canonical ballot values. Every tally carries these even when nobody cast them.
const (
	VoteYea       = "Yea"
	VoteNay       = "Nay"
	VoteNotVoting = "Not Voting"
	VotePresent   = "Present"
	VoteHowRoll   = "roll"
	ChamberSenate = "senate"
	ChamberHouse  = "house"
	UnknownParty  = "?"
)

// CanonicalVoteValues lists the four always-present ballot values.
var CanonicalVoteValues = []string{VoteYea, VoteNay, VoteNotVoting, VotePresent}

// Vote is a roll call vote.
type Vote struct {
	RollID     string            `json:"roll_id"`
	VoteType   string            `json:"vote_type"`
	How        string            `json:"how"`
	Chamber    string            `json:"chamber"`
	Year       int               `json:"year"`
	Number     int               `json:"number"`
	Congress   int               `json:"session"`
	SubSession int               `json:"subsession"`
	RollType   string            `json:"roll_type"`
	Question   string            `json:"question"`
	Result     string            `json:"result"`
	Required   string            `json:"required"`
	VotedAt    time.Time         `json:"voted_at"`
	VoterIDs   map[string]string `json:"voter_ids"`
	Voters     map[string]Voter  `json:"voters"`
	Breakdown  Breakdown         `json:"vote_breakdown"`
	BillID     string            `json:"bill_id,omitempty"`
	Bill       map[string]any    `json:"bill,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Kind implements Record.
func (v *Vote) Kind() Kind { return KindVote }

// Key implements Record.
func (v *Vote) Key() string { return v.RollID }

// Voter is one legislator's ballot with their embedded basic fields.
type Voter struct {
	Vote  string         `json:"vote"`
	Voter map[string]any `json:"voter"`
}

// Ballot is a single parsed ballot before reconciliation.
type Ballot struct {
	LisID      string
	MemberFull string
	Vote       string
	Party      string
}

// Breakdown is a dense tally: every observed value and every canonical value
// appears in the total and in every party, zero-filled.
type Breakdown struct {
	Total map[string]int            `json:"total"`
	Party map[string]map[string]int `json:"party"`
}

// NewBreakdown tallies ballots by vote value and party.
func NewBreakdown(ballots []Ballot) Breakdown {
	values := make(map[string]struct{})
	for _, v := range CanonicalVoteValues {
		values[v] = struct{}{}
	}
	parties := make(map[string]struct{})
	for _, b := range ballots {
		values[b.Vote] = struct{}{}
		parties[partyOf(b)] = struct{}{}
	}

	bd := Breakdown{
		Total: make(map[string]int, len(values)),
		Party: make(map[string]map[string]int, len(parties)),
	}
	for v := range values {
		bd.Total[v] = 0
	}
	for p := range parties {
		row := make(map[string]int, len(values))
		for v := range values {
			row[v] = 0
		}
		bd.Party[p] = row
	}
	for _, b := range ballots {
		bd.Total[b.Vote]++
		bd.Party[partyOf(b)][b.Vote]++
	}
	return bd
}

func partyOf(b Ballot) string {
	if b.Party == "" {
		return UnknownParty
	}
	return b.Party
}

// Values returns the sorted vote values present in the tally.
func (b Breakdown) Values() []string {
	out := make([]string, 0, len(b.Total))
	for v := range b.Total {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
