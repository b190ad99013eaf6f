package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/reconcile"
	"github.com/sells-group/capitol-sync/internal/search"
)

// defaultVoteLimit caps a run over the current session.
const defaultVoteLimit = 20

// Votes syncs Senate roll call votes from senate.gov.
type Votes struct {
	BaseURL string

	validatorOpts []fetcher.ValidatorOption
}

// Name implements Source.
func (v *Votes) Name() string { return "votes" }

// Index implements Source.
func (v *Votes) Index() string { return search.IndexVotes }

// rollRef identifies one roll call on the Senate site.
type rollRef struct {
	Number     int
	Year       int
	Congress   int
	SubSession int
}

// ID returns the roll's natural key, e.g. "s12-2013".
func (r rollRef) ID() string {
	return fmt.Sprintf("s%d-%d", r.Number, r.Year)
}

var rollIDPattern = regexp.MustCompile(`^s(\d+)-(\d{4})$`)

// parseRollID turns "s12-2013" into a rollRef placed on the calendar.
func parseRollID(id string) (rollRef, error) {
	m := rollIDPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return rollRef{}, eris.Errorf("votes: malformed roll id %q", id)
	}
	number, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	return rollRef{
		Number:     number,
		Year:       year,
		Congress:   calendar.SessionForYear(year),
		SubSession: calendar.SubSessionForYear(year),
	}, nil
}

// Sync implements Source.
func (v *Votes) Sync(ctx context.Context, run *Run) (*Result, error) {
	log := zap.L().With(zap.String("component", "source.votes"))

	congress, sessions, limit := v.plan(run)

	var rolls []rollRef
	if run.Opts.ID != "" {
		ref, err := parseRollID(run.Opts.ID)
		if err != nil {
			run.Report.Abort("Invalid roll id, can't go on.", map[string]any{"roll_id": run.Opts.ID})
			return &Result{}, nil
		}
		congress = ref.Congress
		rolls = []rollRef{ref}
	} else {
		for _, session := range sessions {
			latest, err := v.latestRoll(ctx, run, congress, session)
			if err != nil {
				run.Report.Abort("Failed to find the latest new roll on the Senate's site, can't go on.", map[string]any{
					"congress": congress,
					"session":  session,
					"error":    err.Error(),
				})
				return &Result{}, nil
			}
			year := calendar.YearForSubSession(congress, session)
			for n := latest; n >= 1; n-- {
				rolls = append(rolls, rollRef{Number: n, Year: year, Congress: congress, SubSession: session})
			}
		}
		if limit > 0 && len(rolls) > limit {
			rolls = rolls[:limit]
		}
	}

	log.Info("syncing roll calls", zap.Int("congress", congress), zap.Int("count", len(rolls)))

	validator := fetcher.NewValidator(run.Fetch, "application/xml", v.validatorOpts...)
	count := 0
	for _, roll := range rolls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := v.syncRoll(ctx, run, validator, roll)
		if err != nil {
			return nil, err
		}
		if ok {
			count++
		}
	}

	return &Result{
		Count:   count,
		Summary: fmt.Sprintf("Synced %d Senate roll call votes from the %s Congress", count, ordinal(congress)),
	}, nil
}

// plan picks the congress, the sub-sessions newest first, and the item
// limit. Naming a congress archives it whole unless --limit is given.
func (v *Votes) plan(run *Run) (congress int, sessions []int, limit int) {
	if run.Opts.Congress > 0 {
		congress = run.Opts.Congress
		sessions = []int{2, 1}
		if run.Opts.Session > 0 {
			sessions = []int{run.Opts.Session}
		}
		return congress, sessions, run.Opts.Limit
	}

	p := run.point()
	limit = defaultVoteLimit
	if run.Opts.Limit > 0 {
		limit = run.Opts.Limit
	}
	return p.Congress, []int{p.SubSession}, limit
}

// latestRoll reads the newest roll number off a session's vote menu.
func (v *Votes) latestRoll(ctx context.Context, run *Run, congress, session int) (int, error) {
	url := fmt.Sprintf("%s/legislative/LIS/roll_call_lists/vote_menu_%d_%d.htm", strings.TrimRight(v.BaseURL, "/"), congress, session)
	art, err := run.Fetch.Fetch(ctx, url, fetcher.Options{Debug: run.Opts.Debug})
	if err != nil {
		return 0, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(art.Body))
	if err != nil {
		return 0, eris.Wrapf(err, "votes: parse menu %s", url)
	}
	text := strings.TrimSpace(doc.Find("td.contenttext td.contenttext a").First().Text())
	if text == "" {
		return 0, eris.Errorf("votes: no roll numbers listed at %s", url)
	}
	latest, err := strconv.Atoi(text)
	if err != nil {
		return 0, eris.Wrapf(err, "votes: roll number %q at %s", text, url)
	}
	return latest, nil
}

func (v *Votes) rollURL(r rollRef) string {
	return fmt.Sprintf("%s/legislative/LIS/roll_call_votes/vote%d%d/vote_%d_%d_%05d.xml",
		strings.TrimRight(v.BaseURL, "/"), r.Congress, r.SubSession, r.Congress, r.SubSession, r.Number)
}

func rollDestination(dataDir string, r rollRef) string {
	return filepath.Join(dataDir, "senate", "rolls", strconv.Itoa(r.Year), fmt.Sprintf("%05d.xml", r.Number))
}

// syncRoll downloads, parses and reconciles one roll call. It reports
// whether a vote was saved; errors are store failures.
func (v *Votes) syncRoll(ctx context.Context, run *Run, validator *fetcher.Validator, roll rollRef) (bool, error) {
	log := zap.L().With(zap.String("component", "source.votes"), zap.String("roll_id", roll.ID()))

	url := v.rollURL(roll)
	dest := rollDestination(run.DataDir, roll)
	art, err := validator.Fetch(ctx, url, fetcher.Options{Force: run.Opts.Force, Destination: dest, Debug: run.Opts.Debug})
	if err != nil {
		if errors.Is(err, fetcher.ErrWrongContentType) || errors.Is(err, fetcher.ErrNotFound) {
			// The roll is usually just not published yet.
			log.Debug("roll not available, skipping", zap.Error(err))
			observe(v.Name(), metrics.ItemSkipped)
			return false, nil
		}
		run.Report.Fail("Couldn't download", map[string]any{
			"roll_id":     roll.ID(),
			"url":         url,
			"destination": dest,
			"error":       err.Error(),
		})
		observe(v.Name(), metrics.ItemFailed)
		return false, nil
	}

	var doc rollCallVote
	if err := fetcher.DecodeXML(art.Body, &doc); err != nil {
		run.Report.Fail("Couldn't parse roll call", map[string]any{"roll_id": roll.ID(), "error": err.Error()})
		observe(v.Name(), metrics.ItemFailed)
		return false, nil
	}

	vote := &model.Vote{
		RollID:     roll.ID(),
		How:        model.VoteHowRoll,
		Chamber:    model.ChamberSenate,
		Year:       roll.Year,
		Number:     roll.Number,
		Congress:   roll.Congress,
		SubSession: roll.SubSession,
		RollType:   strings.TrimSpace(doc.Question),
		Question:   strings.TrimSpace(doc.QuestionText),
		Result:     strings.TrimSpace(doc.Result),
		Required:   strings.TrimSpace(doc.MajorityRequirement),
	}
	vote.VoteType = VoteType(vote.RollType)
	if t, ok := parseDate(doc.VoteDate, run.Now.Location(), voteDateLayouts...); ok {
		vote.VotedAt = t.UTC()
	} else {
		run.Report.Warn("Couldn't parse vote date", map[string]any{"roll_id": roll.ID(), "vote_date": doc.VoteDate})
	}

	ballots, err := v.voters(ctx, run, &doc, vote)
	if err != nil {
		return false, err
	}
	vote.Breakdown = model.NewBreakdown(ballots)
	log.Debug("tallied", zap.Int("ballots", len(ballots)), zap.Strings("values", vote.Breakdown.Values()))

	if billID := billIDForRoll(&doc, roll.Congress); billID != "" {
		ref, _, err := run.Recon.BillRef(ctx, billID, stubTitlesFor(&doc))
		if err != nil {
			run.Report.Warn("Missing bill for roll call", map[string]any{
				"roll_id": roll.ID(),
				"bill_id": billID,
				"error":   err.Error(),
			})
		} else {
			vote.BillID = billID
			vote.Bill = ref
		}
	}

	if _, err := run.Recon.SaveVote(ctx, vote); err != nil {
		return false, err
	}

	projection, err := model.Project(vote, voteSearchFields)
	if err != nil {
		return false, err
	}
	run.Batch.Enqueue(ctx, vote.RollID, projection)
	observe(v.Name(), metrics.ItemSaved)
	log.Debug("saved vote", zap.String("vote_type", vote.VoteType), zap.Int("voters", len(vote.Voters)))
	return true, nil
}

// voters resolves each member by LIS id. Members that cannot be resolved
// are reported and left out of the vote and its breakdown.
func (v *Votes) voters(ctx context.Context, run *Run, doc *rollCallVote, vote *model.Vote) ([]model.Ballot, error) {
	vote.VoterIDs = make(map[string]string, len(doc.Members))
	vote.Voters = make(map[string]model.Voter, len(doc.Members))

	var ballots []model.Ballot
	for _, m := range doc.Members {
		lisID := strings.TrimSpace(m.LisMemberID)
		cast := strings.TrimSpace(m.VoteCast)

		leg, err := run.Legislators.ByLisID(ctx, lisID)
		if err != nil {
			return nil, err
		}
		if leg == nil {
			run.Report.Warn("Couldn't look up legislator in Senate roll call listing", map[string]any{
				"lis_id":      lisID,
				"member_full": strings.TrimSpace(m.MemberFull),
				"roll_id":     vote.RollID,
			})
			continue
		}
		basic, err := reconcile.Basic(leg)
		if err != nil {
			return nil, err
		}
		vote.VoterIDs[leg.BioguideID] = cast
		vote.Voters[leg.BioguideID] = model.Voter{Vote: cast, Voter: basic}
		ballots = append(ballots, model.Ballot{LisID: lisID, MemberFull: m.MemberFull, Vote: cast, Party: leg.Party})
	}
	return ballots, nil
}

// rollCallVote is the subset of the Senate roll call XML that is read.
type rollCallVote struct {
	VoteNumber          int    `xml:"vote_number"`
	VoteDate            string `xml:"vote_date"`
	Question            string `xml:"question"`
	QuestionText        string `xml:"vote_question_text"`
	Result              string `xml:"vote_result"`
	MajorityRequirement string `xml:"majority_requirement"`
	Document            struct {
		Name       string `xml:"document_name"`
		Title      string `xml:"document_title"`
		ShortTitle string `xml:"document_short_title"`
	} `xml:"document"`
	Amendment struct {
		ToDocumentNumber     string `xml:"amendment_to_document_number"`
		ToDocumentShortTitle string `xml:"amendment_to_document_short_title"`
	} `xml:"amendment"`
	Members []rollCallMember `xml:"members>member"`
}

type rollCallMember struct {
	MemberFull  string `xml:"member_full"`
	LastName    string `xml:"last_name"`
	Party       string `xml:"party"`
	State       string `xml:"state"`
	VoteCast    string `xml:"vote_cast"`
	LisMemberID string `xml:"lis_member_id"`
}

var voteDateLayouts = []string{
	"January 2, 2006, 03:04 PM",
	"January 2, 2006, 3:04 PM",
	"January 2, 2006",
}

var voteSearchFields = []string{
	"roll_id", "vote_type", "how", "chamber", "year", "number", "session", "subsession",
	"roll_type", "question", "result", "required", "voted_at", "vote_breakdown",
	"bill_id", "bill",
}

var voteTypeRules = []struct {
	pattern  *regexp.Regexp
	voteType string
}{
	{regexp.MustCompile(`(?i)cloture`), "cloture"},
	{regexp.MustCompile(`(?i)^On the Nomination$`), "nomination"},
	{regexp.MustCompile(`(?i)^Guilty or Not Guilty`), "impeachment"},
	{regexp.MustCompile(`(?i)^On the Resolution of Ratification`), "treaty"},
	{regexp.MustCompile(`(?i)^On (?:the )?Motion to Recommit`), "recommit"},
	{regexp.MustCompile(`(?i)^On Passage`), "passage"},
	{regexp.MustCompile(`(?i)^On Motion to Concur`), "passage"},
	{regexp.MustCompile(`(?i)^On Motion to Suspend the Rules and (Agree|Concur|Pass)`), "passage"},
	{regexp.MustCompile(`(?i)^Suspend (?:the )?Rules and (Agree|Concur)`), "passage"},
	{regexp.MustCompile(`(?i)^On Agreeing to the Resolution`), "passage"},
	{regexp.MustCompile(`(?i)^On Agreeing to the Concurrent Resolution`), "passage"},
	{regexp.MustCompile(`(?i)^On Agreeing to the Conference Report`), "passage"},
	{regexp.MustCompile(`(?i)^On the Joint Resolution`), "passage"},
	{regexp.MustCompile(`(?i)^On the Concurrent Resolution`), "passage"},
	{regexp.MustCompile(`(?i)^On the Resolution`), "passage"},
	{regexp.MustCompile(`(?i)^Call of the House$`), "quorum"},
	{regexp.MustCompile(`(?i)^Election of the Speaker$`), "leadership"},
}

// VoteType classifies a roll by its question type. The first matching rule
// wins; anything unmatched is "other".
func VoteType(rollType string) string {
	for _, r := range voteTypeRules {
		if r.pattern.MatchString(rollType) {
			return r.voteType
		}
	}
	return "other"
}

var (
	rollBillTypes   = []string{"hr", "hres", "hjres", "hcres", "s", "sres", "sjres", "scres"}
	rollBillPattern = regexp.MustCompile(`^([a-z]+)(\d+)$`)
	billCodeCleaner = strings.NewReplacer(" ", "", ".", "")
)

// billIDForRoll derives the bill a roll call is about from the document
// name, falling back to the amended document. Unknown types yield "".
func billIDForRoll(doc *rollCallVote, congress int) string {
	name := strings.TrimSpace(doc.Document.Name)
	if name == "" {
		name = strings.TrimSpace(doc.Amendment.ToDocumentNumber)
	}
	if name == "" {
		return ""
	}
	code := strings.ToLower(billCodeCleaner.Replace(name))
	m := rollBillPattern.FindStringSubmatch(code)
	if m == nil {
		return ""
	}
	billType := m[1]
	if billType == "hconres" {
		billType = "hcres"
	}
	if !slices.Contains(rollBillTypes, billType) {
		return ""
	}
	return fmt.Sprintf("%s%s-%d", billType, m[2], congress)
}

// stubTitlesFor picks titles for an abbreviated bill created from a roll.
func stubTitlesFor(doc *rollCallVote) reconcile.StubTitles {
	if short := strings.TrimSpace(doc.Amendment.ToDocumentShortTitle); short != "" {
		return reconcile.StubTitles{Short: short}
	}
	return reconcile.StubTitles{
		Short:    strings.TrimSpace(doc.Document.ShortTitle),
		Official: strings.TrimSpace(doc.Document.Title),
	}
}
