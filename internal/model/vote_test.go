package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBreakdownDense(t *testing.T) {
	ballots := []Ballot{
		{Vote: VoteYea, Party: "D"},
		{Vote: VoteYea, Party: "D"},
		{Vote: VoteNay, Party: "R"},
		{Vote: "Guilty", Party: "I"},
	}
	bd := NewBreakdown(ballots)

	want := []string{"Guilty", VoteNay, VoteNotVoting, VotePresent, VoteYea}
	assert.Equal(t, want, bd.Values())

	for _, party := range []string{"D", "R", "I"} {
		row, ok := bd.Party[party]
		if assert.True(t, ok, party) {
			for _, v := range want {
				_, present := row[v]
				assert.True(t, present, "party %s missing %s", party, v)
			}
		}
	}

	assert.Equal(t, 2, bd.Total[VoteYea])
	assert.Equal(t, 1, bd.Total[VoteNay])
	assert.Equal(t, 0, bd.Total[VotePresent])
	assert.Equal(t, 0, bd.Party["R"][VoteYea])
	assert.Equal(t, 1, bd.Party["I"]["Guilty"])
	assert.Equal(t, 0, bd.Party["D"]["Guilty"])
}

func TestNewBreakdownEmpty(t *testing.T) {
	bd := NewBreakdown(nil)
	assert.Len(t, bd.Total, 4)
	for _, v := range CanonicalVoteValues {
		assert.Equal(t, 0, bd.Total[v])
	}
	assert.Empty(t, bd.Party)
}

func TestNewBreakdownTotalsMatchParties(t *testing.T) {
	var ballots []Ballot
	values := []string{VoteYea, VoteNay, VoteNotVoting, VotePresent, "Not Guilty"}
	parties := []string{"D", "R", "", "I"}
	for i := range 37 {
		ballots = append(ballots, Ballot{Vote: values[i%len(values)], Party: parties[i%len(parties)]})
	}
	bd := NewBreakdown(ballots)

	assert.Contains(t, bd.Party, UnknownParty)
	for v, total := range bd.Total {
		sum := 0
		for _, row := range bd.Party {
			sum += row[v]
		}
		assert.Equal(t, total, sum, v)
	}
}
