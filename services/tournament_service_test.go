package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/pong-tournament/brackets"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
	"github.com/Dosada05/pong-tournament/storage"
	"github.com/Dosada05/pong-tournament/testhelpers"
)

type publishedEvent struct {
	tournamentID int
	eventType    string
	payload      interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishTournamentEvent(tournamentID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{tournamentID: tournamentID, eventType: eventType, payload: payload})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []*models.Tournament
	err      error
}

func (a *fakeArchiver) ArchiveResults(ctx context.Context, tournament *models.Tournament) (*storage.UploadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	a.archived = append(a.archived, tournament)
	return &storage.UploadResult{Key: ResultsKey(tournament.ID), Location: "memory://" + ResultsKey(tournament.ID)}, nil
}

type testEnv struct {
	db        *sql.DB
	svc       *tournamentService
	events    *recordingPublisher
	archiver  *fakeArchiver
	creatorID int
}

func newTestEnv(t *testing.T, modify ...func(*TournamentServiceDeps)) *testEnv {
	t.Helper()
	conn := testhelpers.SetupTestDB(t)
	creator := testhelpers.CreateUser(t, conn, "neo")

	events := &recordingPublisher{}
	archiver := &fakeArchiver{}
	deps := TournamentServiceDeps{
		DB:              conn,
		TournamentRepo:  repositories.NewTournamentRepository(conn),
		ParticipantRepo: repositories.NewParticipantRepository(conn),
		MatchRepo:       repositories.NewMatchRepository(conn),
		UserRepo:        repositories.NewUserRepository(conn),
		Shuffler:        brackets.NewShuffler(rand.New(rand.NewSource(1))),
		Events:          events,
		Archiver:        archiver,
	}
	for _, m := range modify {
		m(&deps)
	}

	return &testEnv{
		db:        conn,
		svc:       NewTournamentService(deps).(*tournamentService),
		events:    events,
		archiver:  archiver,
		creatorID: creator.ID,
	}
}

// newCup creates a tournament owned by Neo and joins the given guests.
func (e *testEnv) newCup(t *testing.T, maxPlayers int, guests ...string) int {
	t.Helper()
	created, err := e.svc.CreateTournament(context.Background(), CreateTournamentInput{
		Name:         "Cup",
		CreatedBy:    e.creatorID,
		CreatorAlias: "Neo",
		MinPlayers:   2,
		MaxPlayers:   maxPlayers,
	})
	require.NoError(t, err)
	for _, alias := range guests {
		_, err := e.svc.JoinTournament(context.Background(), created.ID, alias)
		require.NoError(t, err)
	}
	return created.ID
}

func (e *testEnv) matches(t *testing.T, tournamentID int, round models.MatchRound) []*models.Match {
	t.Helper()
	matches, err := e.svc.matchRepo.ListByTournament(context.Background(), nil, tournamentID, &round)
	require.NoError(t, err)
	return matches
}

func (e *testEnv) tournament(t *testing.T, tournamentID int) *models.Tournament {
	t.Helper()
	tournament, err := e.svc.GetTournament(context.Background(), tournamentID)
	require.NoError(t, err)
	return tournament
}

func (e *testEnv) aliases(t *testing.T, match *models.Match) (string, string) {
	t.Helper()
	alias1, alias2, ok := models.ParseMatchup(match.OpponentName)
	require.True(t, ok)
	return alias1, alias2
}

func (e *testEnv) record(t *testing.T, matchID, userScore, opponentScore int, loggedIn *int) *MatchOutcome {
	t.Helper()
	outcome, err := e.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{
		MatchID:        matchID,
		UserScore:      userScore,
		OpponentScore:  opponentScore,
		LoggedInUserID: loggedIn,
	})
	require.NoError(t, err)
	return outcome
}

func TestTournamentHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")

	started, err := env.svc.StartTournament(ctx, id)
	require.NoError(t, err)
	require.Len(t, started.Matches, 2)

	var seen []string
	for _, m := range started.Matches {
		assert.Equal(t, models.RoundSemifinal, m.Round)
		seen = append(seen, m.Player1.Alias, m.Player2.Alias)
	}
	assert.ElementsMatch(t, []string{"Neo", "Trinity", "Morpheus", "Switch"}, seen)
	assert.Empty(t, env.matches(t, id, models.RoundFinal))
	assert.Equal(t, models.TournamentStatusStarted, env.tournament(t, id).Status)

	semis := env.matches(t, id, models.RoundSemifinal)
	require.Len(t, semis, 2)
	for _, m := range semis {
		assert.Equal(t, models.MatchResultPending, m.Result)
		assert.Nil(t, m.UserID)
		assert.Nil(t, m.OpponentID)
	}

	first := env.record(t, semis[0].ID, 5, 2, nil)
	a1, _ := env.aliases(t, semis[0])
	assert.Equal(t, a1, *first.WinnerAlias)
	assert.Empty(t, env.matches(t, id, models.RoundFinal), "no final before both semifinals resolve")

	second := env.record(t, semis[1].ID, 3, 5, nil)
	_, b2 := env.aliases(t, semis[1])
	assert.Equal(t, b2, *second.WinnerAlias)

	finals := env.matches(t, id, models.RoundFinal)
	require.Len(t, finals, 1)
	f1, f2 := env.aliases(t, finals[0])
	assert.ElementsMatch(t, []string{a1, b2}, []string{f1, f2})

	final := env.record(t, finals[0].ID, 5, 1, nil)
	assert.Equal(t, f1, *final.WinnerAlias)
	assert.Equal(t, f2, *final.LoserAlias)

	finished := env.tournament(t, id)
	assert.Equal(t, models.TournamentStatusFinished, finished.Status)
	assert.Equal(t, f1, finished.CreatorAlias)
	require.NotNil(t, finished.WinnerAlias)
	assert.Equal(t, f1, *finished.WinnerAlias)
	assert.NotNil(t, finished.FinishedAt)

	assert.Equal(t, []string{
		EventParticipantJoined, EventParticipantJoined, EventParticipantJoined,
		EventTournamentStarted,
		EventMatchUpdated,
		EventMatchUpdated, EventFinalCreated,
		EventMatchUpdated, EventTournamentFinished,
	}, env.events.types())

	require.Len(t, env.archiver.archived, 1)
	assert.Equal(t, id, env.archiver.archived[0].ID)
	assert.Len(t, env.archiver.archived[0].Matches, 3)
	assert.Len(t, env.archiver.archived[0].Participants, 4)
	assert.Zero(t, env.svc.locks.size())
}

func TestCreateTournamentValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		input   CreateTournamentInput
		wantErr error
	}{
		{"short name", CreateTournamentInput{Name: " ab ", CreatorAlias: "Neo", MinPlayers: 2, MaxPlayers: 4}, ErrTournamentNameTooShort},
		{"min below two", CreateTournamentInput{Name: "Cup", CreatorAlias: "Neo", MinPlayers: 1, MaxPlayers: 4}, ErrInvalidPlayerLimits},
		{"max below min", CreateTournamentInput{Name: "Cup", CreatorAlias: "Neo", MinPlayers: 4, MaxPlayers: 3}, ErrInvalidPlayerLimits},
		{"blank alias", CreateTournamentInput{Name: "Cup", CreatorAlias: "   ", MinPlayers: 2, MaxPlayers: 4}, ErrAliasRequired},
		{"long alias", CreateTournamentInput{Name: "Cup", CreatorAlias: strings.Repeat("x", 21), MinPlayers: 2, MaxPlayers: 4}, ErrAliasTooLong},
		{"unknown creator", CreateTournamentInput{Name: "Cup", CreatedBy: 999, CreatorAlias: "Neo", MinPlayers: 2, MaxPlayers: 4}, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.input.CreatedBy == 0 {
				tt.input.CreatedBy = env.creatorID
			}
			_, err := env.svc.CreateTournament(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, ErrUserNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrAliasTooLong, ErrInvalidArgument)

	var count int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM tournaments`).Scan(&count))
	assert.Zero(t, count)
}

func TestCreateTournamentAutoJoinsTrimmedCreator(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.svc.CreateTournament(context.Background(), CreateTournamentInput{
		Name: "Cup", CreatedBy: env.creatorID, CreatorAlias: "  Neo  ", MinPlayers: 2, MaxPlayers: 4,
	})
	require.NoError(t, err)

	details, err := env.svc.GetTournamentDetails(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Neo", details.CreatorAlias)
	require.Len(t, details.Participants, 1)
	assert.Equal(t, "Neo", details.Participants[0].TournamentAlias)
	assert.Equal(t, models.ParticipantStatusJoined, details.Participants[0].Status)
}

type failingParticipantRepo struct {
	repositories.ParticipantRepository
}

func (failingParticipantRepo) Create(context.Context, repositories.SQLExecutor, *models.Participant) error {
	return errors.New("disk full")
}

func TestCreateTournamentIsAtomic(t *testing.T) {
	env := newTestEnv(t, func(d *TournamentServiceDeps) {
		d.ParticipantRepo = failingParticipantRepo{d.ParticipantRepo}
	})

	_, err := env.svc.CreateTournament(context.Background(), CreateTournamentInput{
		Name: "Cup", CreatedBy: env.creatorID, CreatorAlias: "Neo", MinPlayers: 2, MaxPlayers: 4,
	})
	require.Error(t, err)

	var count int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM tournaments`).Scan(&count))
	assert.Zero(t, count)
}

func TestJoinTournamentRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 3, "Trinity")

	_, err := env.svc.JoinTournament(ctx, id, "Neo")
	assert.ErrorIs(t, err, ErrAliasConflict)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.JoinTournament(ctx, id, "  ")
	assert.ErrorIs(t, err, ErrAliasRequired)

	_, err = env.svc.JoinTournament(ctx, 999, "Morpheus")
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	joined, err := env.svc.JoinTournament(ctx, id, " neo ")
	require.NoError(t, err)
	assert.Equal(t, "neo", joined.Alias)

	_, err = env.svc.JoinTournament(ctx, id, "Switch")
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestJoinFullTournament(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 2, "Trinity")

	_, err := env.svc.JoinTournament(context.Background(), id, "Morpheus")
	assert.ErrorIs(t, err, ErrTournamentFull)
	assert.ErrorIs(t, err, ErrFull)
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.JoinTournament(context.Background(), id, fmt.Sprintf("guest-%d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, full int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrTournamentFull):
			full++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, full)

	count, err := env.svc.participantRepo.CountByTournament(context.Background(), nil, id, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Zero(t, env.svc.locks.size())
}

func TestLeaveTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")

	_, err := env.svc.LeaveTournament(ctx, id, "Ghost")
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	_, err = env.svc.LeaveTournament(ctx, 999, "Trinity")
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = env.svc.LeaveTournament(ctx, id, "Switch")
	require.NoError(t, err)
	_, err = env.svc.JoinTournament(ctx, id, "Switch")
	require.NoError(t, err)

	_, err = env.svc.StartTournament(ctx, id)
	require.NoError(t, err)

	for _, alias := range []string{"Trinity", "Neo"} {
		_, err = env.svc.LeaveTournament(ctx, id, alias)
		assert.ErrorIs(t, err, ErrTournamentNotPending)
		assert.ErrorIs(t, err, ErrInvalidState)
	}

	_, err = env.svc.JoinTournament(ctx, id, "Tank")
	assert.ErrorIs(t, err, ErrTournamentNotPending)
}

func TestStartTournamentRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.StartTournament(ctx, 999)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err = env.svc.StartTournament(ctx, id)
	require.NoError(t, err)

	_, err = env.svc.StartTournament(ctx, id)
	assert.ErrorIs(t, err, ErrTournamentNotPending)
	assert.Len(t, env.matches(t, id, models.RoundSemifinal), 2)
}

func TestStartWithUnsupportedCountRollsBack(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus")
	before := len(env.events.types())

	_, err := env.svc.StartTournament(context.Background(), id)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)

	assert.Equal(t, models.TournamentStatusPending, env.tournament(t, id).Status)
	assert.Empty(t, env.matches(t, id, models.RoundSemifinal))
	assert.Len(t, env.events.types(), before, "nothing is published for a rolled back start")
}

func TestStartWithSinglePlayerDeclaresChampion(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4)

	started, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, started.Matches)
	assert.Contains(t, started.Message, "Neo")

	tournament := env.tournament(t, id)
	assert.Equal(t, models.TournamentStatusFinished, tournament.Status)
	require.NotNil(t, tournament.WinnerAlias)
	assert.Equal(t, "Neo", *tournament.WinnerAlias)
	assert.Len(t, env.archiver.archived, 1)
}

func TestTwoPlayerTournamentGoesStraightToFinal(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 2, "Trinity")

	started, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, started.Matches, 1)
	assert.Equal(t, models.RoundFinal, started.Matches[0].Round)

	outcome := env.record(t, started.Matches[0].MatchID, 1, 5, nil)
	assert.Equal(t, started.Matches[0].Player2.Alias, *outcome.WinnerAlias)
	assert.Equal(t, models.TournamentStatusFinished, env.tournament(t, id).Status)
}

// semifinalWith returns the semifinal that does (or does not) include alias.
func semifinalWith(t *testing.T, env *testEnv, id int, alias string, includes bool) *models.Match {
	t.Helper()
	for _, m := range env.matches(t, id, models.RoundSemifinal) {
		a, b := env.aliases(t, m)
		if (a == alias || b == alias) == includes {
			return m
		}
	}
	t.Fatalf("no semifinal found (alias %q, includes=%v)", alias, includes)
	return nil
}

func TestCreatorDidNotParticipate(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)

	match := semifinalWith(t, env, id, "Neo", false)
	outcome := env.record(t, match.ID, 5, 2, &env.creatorID)
	winner, _ := env.aliases(t, match)
	assert.Equal(t, winner, *outcome.WinnerAlias)

	stored, err := env.svc.matchRepo.GetByID(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultDidNotParticipate, stored.Result)
	assert.Zero(t, stored.UserScore)
	assert.Zero(t, stored.OpponentScore)
	assert.Nil(t, stored.UserID)

	// the bracket still advances on the generic scores
	advanced, err := env.svc.participantRepo.FindByAlias(context.Background(), nil, id, winner)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantStatusWinner, advanced.Status)
}

func TestCreatorResultIsMirrored(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)

	match := semifinalWith(t, env, id, "Neo", true)
	alias1, _ := env.aliases(t, match)

	// Neo wins 5-2 whichever side of the pairing Neo is on.
	userScore, opponentScore := 5, 2
	if alias1 != "Neo" {
		userScore, opponentScore = 2, 5
	}
	outcome := env.record(t, match.ID, userScore, opponentScore, &env.creatorID)
	assert.Equal(t, "Neo", *outcome.WinnerAlias)

	stored, err := env.svc.matchRepo.GetByID(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultWin, stored.Result)
	assert.Equal(t, 5, stored.UserScore)
	assert.Equal(t, 2, stored.OpponentScore)
	require.NotNil(t, stored.UserID)
	assert.Equal(t, env.creatorID, *stored.UserID)
	assert.True(t, strings.HasSuffix(stored.OpponentName, " | Winner: Neo"))
}

func TestReconcileCreator(t *testing.T) {
	creatorID := 7
	tournament := &models.Tournament{CreatedBy: creatorID, CreatorAlias: "Neo"}
	neo := &models.Participant{ID: 1, TournamentAlias: "Neo"}
	trinity := &models.Participant{ID: 2, TournamentAlias: "Trinity"}
	other := 8

	tests := []struct {
		name       string
		p1, p2     *models.Participant
		winner     *models.Participant
		base       models.MatchResult
		loggedIn   *int
		wantResult models.MatchResult
		wantScores [2]int
		wantUser   bool
	}{
		{"creator first and loses", neo, trinity, trinity, models.MatchResultFinished, &creatorID, models.MatchResultLoss, [2]int{3, 5}, true},
		{"creator second and loses", trinity, neo, trinity, models.MatchResultFinished, &creatorID, models.MatchResultLoss, [2]int{5, 3}, true},
		{"creator draw", neo, trinity, nil, models.MatchResultDraw, &creatorID, models.MatchResultDraw, [2]int{3, 5}, true},
		{"other user", neo, trinity, trinity, models.MatchResultFinished, &other, models.MatchResultFinished, [2]int{3, 5}, false},
		{"anonymous", neo, trinity, trinity, models.MatchResultFinished, nil, models.MatchResultFinished, [2]int{3, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := &models.Match{UserScore: 3, OpponentScore: 5, Result: tt.base}
			reconcileCreator(record, tournament, tt.p1, tt.p2, tt.winner, tt.loggedIn)

			assert.Equal(t, tt.wantResult, record.Result)
			assert.Equal(t, tt.wantScores, [2]int{record.UserScore, record.OpponentScore})
			assert.Equal(t, tt.wantUser, record.UserID != nil)
		})
	}
}

func TestResultsAreNotReopened(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)

	match := env.matches(t, id, models.RoundSemifinal)[0]
	env.record(t, match.ID, 5, 2, nil)

	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: match.ID, UserScore: 0, OpponentScore: 5})
	assert.ErrorIs(t, err, ErrMatchAlreadyRecorded)

	stored, err := env.svc.matchRepo.GetByID(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultFinished, stored.Result)
	assert.Equal(t, 5, stored.UserScore)
}

func TestUpdateMatchResultsValidation(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)
	match := env.matches(t, id, models.RoundSemifinal)[0]

	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: match.ID, UserScore: -1, OpponentScore: 3})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: match.ID, UserScore: 3, OpponentScore: 3})
	assert.ErrorIs(t, err, ErrDrawNotAllowed)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: 999, UserScore: 3, OpponentScore: 1})
	assert.ErrorIs(t, err, ErrMatchNotFound)

	// An unknown match is reported before the scores are judged.
	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: 999, UserScore: 3, OpponentScore: 3})
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, err = env.svc.UpdateMatchResults(context.Background(), UpdateMatchResultsInput{MatchID: 999, UserScore: -1, OpponentScore: 3})
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := env.svc.matchRepo.GetByID(context.Background(), nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultPending, stored.Result)
}

func TestDrawPolicyAllowStallsBracket(t *testing.T) {
	env := newTestEnv(t, func(d *TournamentServiceDeps) { d.DrawPolicy = DrawPolicyAllow })
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)
	semis := env.matches(t, id, models.RoundSemifinal)

	drawn := env.record(t, semis[0].ID, 4, 4, nil)
	assert.Nil(t, drawn.WinnerAlias)
	assert.Nil(t, drawn.LoserAlias)
	env.record(t, semis[1].ID, 5, 0, nil)

	stored, err := env.svc.matchRepo.GetByID(context.Background(), nil, semis[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultDraw, stored.Result)
	assert.NotContains(t, stored.OpponentName, "Winner")

	assert.Empty(t, env.matches(t, id, models.RoundFinal))
	assert.Equal(t, models.TournamentStatusStarted, env.tournament(t, id).Status)
}

func TestDeclareChampion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 4, "Trinity")

	_, err := env.svc.DeclareChampion(ctx, id, " ")
	assert.ErrorIs(t, err, ErrAliasRequired)

	_, err = env.svc.DeclareChampion(ctx, 999, "Trinity")
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, err = env.svc.DeclareChampion(ctx, id, "Ghost")
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	champion, err := env.svc.DeclareChampion(ctx, id, "Trinity")
	require.NoError(t, err)
	assert.Equal(t, &ChampionResult{TournamentID: id, Champion: "Trinity"}, champion)
	assert.Equal(t, "Trinity", env.tournament(t, id).CreatorAlias)

	_, err = env.svc.DeclareChampion(ctx, id, "Neo")
	assert.ErrorIs(t, err, ErrTournamentFinished)
	assert.Equal(t, "Trinity", env.tournament(t, id).CreatorAlias)
}

func TestArchiveFailureDoesNotFailOperation(t *testing.T) {
	env := newTestEnv(t)
	env.archiver.err = errors.New("bucket unavailable")
	id := env.newCup(t, 4, "Trinity")

	_, err := env.svc.DeclareChampion(context.Background(), id, "Neo")
	require.NoError(t, err)
	assert.Equal(t, models.TournamentStatusFinished, env.tournament(t, id).Status)
}

func TestBracketsVaryAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	configurations := map[string]int{}

	for i := 0; i < 120; i++ {
		id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
		started, err := env.svc.StartTournament(context.Background(), id)
		require.NoError(t, err)

		pairs := make([]string, 0, 2)
		for _, m := range started.Matches {
			pair := []string{m.Player1.Alias, m.Player2.Alias}
			sort.Strings(pair)
			pairs = append(pairs, strings.Join(pair, "+"))
		}
		sort.Strings(pairs)
		configurations[strings.Join(pairs, " / ")]++
	}

	assert.Greater(t, len(configurations), 1)
	assert.LessOrEqual(t, len(configurations), 3)
}

func TestListTournaments(t *testing.T) {
	env := newTestEnv(t)
	first := env.newCup(t, 4, "Trinity")
	env.newCup(t, 4)
	_, err := env.svc.DeclareChampion(context.Background(), first, "Trinity")
	require.NoError(t, err)

	finished := "finished"
	list, err := env.svc.ListTournaments(context.Background(), ListTournamentsInput{Status: &finished})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first, list[0].ID)

	all, err := env.svc.ListTournaments(context.Background(), ListTournamentsInput{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bogus := "cancelled"
	_, err = env.svc.ListTournaments(context.Background(), ListTournamentsInput{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalidTournamentStatus)
}

func TestEnsureCreator(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4)

	assert.NoError(t, env.svc.EnsureCreator(context.Background(), id, env.creatorID))
	assert.ErrorIs(t, env.svc.EnsureCreator(context.Background(), id, env.creatorID+1), ErrForbiddenOperation)
	assert.ErrorIs(t, env.svc.EnsureCreator(context.Background(), 999, env.creatorID), ErrNotFound)
}

func TestMatchService(t *testing.T) {
	env := newTestEnv(t)
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	_, err := env.svc.StartTournament(context.Background(), id)
	require.NoError(t, err)

	svc := NewMatchService(env.svc.matchRepo, env.svc.tournamentRepo)

	matches, err := svc.ListMatchesByTournament(context.Background(), id, nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	_, err = svc.ListMatchesByTournament(context.Background(), 999, nil)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	match, err := svc.GetMatch(context.Background(), matches[0].ID)
	require.NoError(t, err)
	assert.Equal(t, id, match.TournamentID)

	_, err = svc.GetMatch(context.Background(), 999)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

// insertLegacyMatch stores a pending match that only names its players
// through opponent_name, the way rows without player references look.
func (e *testEnv) insertLegacyMatch(t *testing.T, tournamentID int, round models.MatchRound, opponentName string) int {
	t.Helper()
	match := &models.Match{
		Result:       models.MatchResultPending,
		Round:        round,
		TournamentID: tournamentID,
		OpponentName: opponentName,
	}
	require.NoError(t, e.svc.matchRepo.Create(context.Background(), nil, match))
	return match.ID
}

func (e *testEnv) markStarted(t *testing.T, tournamentID int) {
	t.Helper()
	require.NoError(t, e.svc.tournamentRepo.UpdateStatus(context.Background(), nil, tournamentID, models.TournamentStatusStarted))
}

func TestMatchWithoutPlayerReferencesResolvesByName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 4, "Trinity", "Morpheus", "Switch")
	env.markStarted(t, id)

	first := env.insertLegacyMatch(t, id, models.RoundSemifinal, "Trinity vs Morpheus")
	second := env.insertLegacyMatch(t, id, models.RoundSemifinal, "Neo vs Switch")

	outcome := env.record(t, first, 5, 2, nil)
	require.NotNil(t, outcome.WinnerAlias)
	assert.Equal(t, "Trinity", *outcome.WinnerAlias)
	assert.Equal(t, "Morpheus", *outcome.LoserAlias)

	trinity, err := env.svc.participantRepo.FindByAlias(ctx, nil, id, "Trinity")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantStatusWinner, trinity.Status)
	assert.Empty(t, env.matches(t, id, models.RoundFinal))

	outcome = env.record(t, second, 3, 5, nil)
	assert.Equal(t, "Switch", *outcome.WinnerAlias)

	finals := env.matches(t, id, models.RoundFinal)
	require.Len(t, finals, 1)
	alias1, alias2 := env.aliases(t, finals[0])
	assert.ElementsMatch(t, []string{"Trinity", "Switch"}, []string{alias1, alias2})
	assert.NotNil(t, finals[0].Player1ID)
	assert.NotNil(t, finals[0].Player2ID)

	env.record(t, finals[0].ID, 7, 1, nil)
	assert.Equal(t, models.TournamentStatusFinished, env.tournament(t, id).Status)
}

func TestMatchWithUnknownPlayerNames(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.newCup(t, 4, "Trinity", "Ghost")
	_, err := env.svc.LeaveTournament(ctx, id, "Ghost")
	require.NoError(t, err)
	env.markStarted(t, id)

	departed := env.insertLegacyMatch(t, id, models.RoundSemifinal, "Trinity vs Ghost")
	_, err = env.svc.UpdateMatchResults(ctx, UpdateMatchResultsInput{MatchID: departed, UserScore: 5, OpponentScore: 2})
	assert.ErrorIs(t, err, ErrMatchPlayersUnknown)
	assert.ErrorIs(t, err, ErrNotFound)

	unparsable := env.insertLegacyMatch(t, id, models.RoundSemifinal, "Trinity")
	_, err = env.svc.UpdateMatchResults(ctx, UpdateMatchResultsInput{MatchID: unparsable, UserScore: 5, OpponentScore: 2})
	assert.ErrorIs(t, err, ErrMatchPlayersUnknown)

	stored, err := env.svc.matchRepo.GetByID(ctx, nil, departed)
	require.NoError(t, err)
	assert.Equal(t, models.MatchResultPending, stored.Result)
	trinity, err := env.svc.participantRepo.FindByAlias(ctx, nil, id, "Trinity")
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantStatusJoined, trinity.Status)
}
