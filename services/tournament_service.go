package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Dosada05/pong-tournament/brackets"
	"github.com/Dosada05/pong-tournament/metrics"
	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/repositories"
	"golang.org/x/sync/errgroup"
)

// DrawPolicy decides what a level score does to a tournament match.
type DrawPolicy string

const (
	// DrawPolicyReject refuses equal scores before anything is stored.
	DrawPolicyReject DrawPolicy = "reject"
	// DrawPolicyAllow stores a DRAW and advances nobody, so a drawn
	// semifinal leaves the bracket without a final.
	DrawPolicyAllow DrawPolicy = "allow"
)

const (
	minTournamentNameLength = 3
	defaultListLimit        = 20
	maxListLimit            = 100
	archiveTimeout          = 15 * time.Second
)

type CreateTournamentInput struct {
	Name         string `json:"name"`
	CreatedBy    int    `json:"-"`
	CreatorAlias string `json:"creator_alias"`
	MinPlayers   int    `json:"min_players"`
	MaxPlayers   int    `json:"max_players"`
}

type CreateTournamentResult struct {
	ID int `json:"id"`
}

type JoinTournamentResult struct {
	Message string `json:"message"`
	Alias   string `json:"alias"`
}

type LeaveTournamentResult struct {
	Message string `json:"message"`
}

type StartTournamentResult struct {
	Message string      `json:"message"`
	Matches []MatchView `json:"matches"`
}

type UpdateMatchResultsInput struct {
	MatchID       int
	UserScore     int
	OpponentScore int
	// LoggedInUserID is the caller's account, if any. Only the tournament
	// creator changes how the result is stored.
	LoggedInUserID *int
}

// MatchOutcome names both sides of a recorded match; both are nil on a draw.
type MatchOutcome struct {
	WinnerAlias *string `json:"winner_alias"`
	LoserAlias  *string `json:"loser_alias"`
}

type ChampionResult struct {
	TournamentID int    `json:"tournament_id"`
	Champion     string `json:"champion"`
}

type ListTournamentsInput struct {
	Status *string
	Limit  int
	Offset int
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*CreateTournamentResult, error)
	JoinTournament(ctx context.Context, tournamentID int, alias string) (*JoinTournamentResult, error)
	LeaveTournament(ctx context.Context, tournamentID int, alias string) (*LeaveTournamentResult, error)
	StartTournament(ctx context.Context, tournamentID int) (*StartTournamentResult, error)
	UpdateMatchResults(ctx context.Context, input UpdateMatchResultsInput) (*MatchOutcome, error)
	DeclareChampion(ctx context.Context, tournamentID int, alias string) (*ChampionResult, error)

	GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
	GetTournamentDetails(ctx context.Context, tournamentID int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error)
	// EnsureCreator returns ErrCreatorOnly unless userID created the tournament.
	EnsureCreator(ctx context.Context, tournamentID, userID int) error
}

// TournamentServiceDeps wires the engine. Events, Archiver, Generator and
// Logger are optional.
type TournamentServiceDeps struct {
	DB              *sql.DB
	TournamentRepo  repositories.TournamentRepository
	ParticipantRepo repositories.ParticipantRepository
	MatchRepo       repositories.MatchRepository
	UserRepo        repositories.UserRepository
	Shuffler        *brackets.Shuffler
	Generator       brackets.BracketGenerator
	Events          EventPublisher
	Archiver        ResultsArchiver
	DrawPolicy      DrawPolicy
	Logger          *slog.Logger
}

type tournamentService struct {
	db              *sql.DB
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	userRepo        repositories.UserRepository
	shuffler        *brackets.Shuffler
	generator       brackets.BracketGenerator
	events          EventPublisher
	archiver        ResultsArchiver
	drawPolicy      DrawPolicy
	logger          *slog.Logger
	locks           *tournamentLocks
}

func NewTournamentService(deps TournamentServiceDeps) TournamentService {
	s := &tournamentService{
		db:              deps.DB,
		tournamentRepo:  deps.TournamentRepo,
		participantRepo: deps.ParticipantRepo,
		matchRepo:       deps.MatchRepo,
		userRepo:        deps.UserRepo,
		shuffler:        deps.Shuffler,
		generator:       deps.Generator,
		events:          deps.Events,
		archiver:        deps.Archiver,
		drawPolicy:      deps.DrawPolicy,
		logger:          deps.Logger,
		locks:           newTournamentLocks(),
	}
	if s.shuffler == nil {
		s.shuffler = brackets.NewShuffler(nil)
	}
	if s.generator == nil {
		s.generator = brackets.NewKnockoutGenerator(s.shuffler)
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.drawPolicy == "" {
		s.drawPolicy = DrawPolicyReject
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*CreateTournamentResult, error) {
	name := strings.TrimSpace(input.Name)
	if utf8.RuneCountInString(name) < minTournamentNameLength {
		return nil, ErrTournamentNameTooShort
	}
	if input.MinPlayers < 2 || input.MaxPlayers < input.MinPlayers {
		return nil, ErrInvalidPlayerLimits
	}
	alias, err := normalizeAlias(input.CreatorAlias)
	if err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:         name,
		CreatedBy:    input.CreatedBy,
		CreatorAlias: alias,
		MinPlayers:   input.MinPlayers,
		MaxPlayers:   input.MaxPlayers,
		Status:       models.TournamentStatusPending,
	}

	err = withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if _, err := s.userRepo.GetByID(ctx, tx, input.CreatedBy); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to look up creator %d: %w", input.CreatedBy, err)
		}
		if err := s.tournamentRepo.Create(ctx, tx, tournament); err != nil {
			if errors.Is(err, repositories.ErrTournamentInvalidOwner) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to create tournament: %w", err)
		}
		creator := &models.Participant{
			TournamentID:    tournament.ID,
			TournamentAlias: alias,
			Status:          models.ParticipantStatusJoined,
		}
		if err := s.participantRepo.Create(ctx, tx, creator); err != nil {
			return fmt.Errorf("failed to auto-join creator to tournament %d: %w", tournament.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TournamentCreated()
	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("created_by", tournament.CreatedBy),
		slog.String("creator_alias", alias))

	return &CreateTournamentResult{ID: tournament.ID}, nil
}

func (s *tournamentService) JoinTournament(ctx context.Context, tournamentID int, alias string) (*JoinTournamentResult, error) {
	alias, err := normalizeAlias(alias)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	var participant *models.Participant
	err = withTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		tournament, err := s.loadTournament(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if !tournament.IsPending() {
			return ErrTournamentNotPending
		}

		count, err := s.participantRepo.CountByTournament(ctx, tx, tournamentID, nil)
		if err != nil {
			return fmt.Errorf("failed to count participants of tournament %d: %w", tournamentID, err)
		}
		if count >= tournament.MaxPlayers {
			return ErrTournamentFull
		}

		participant = &models.Participant{
			TournamentID:    tournamentID,
			TournamentAlias: alias,
			Status:          models.ParticipantStatusJoined,
		}
		if err := s.participantRepo.Create(ctx, tx, participant); err != nil {
			switch {
			case errors.Is(err, repositories.ErrParticipantConflict):
				return ErrAliasConflict
			case errors.Is(err, repositories.ErrParticipantTournamentInvalid):
				return ErrTournamentNotFound
			}
			return fmt.Errorf("failed to join tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ParticipantJoined()
	s.events.PublishTournamentEvent(tournamentID, EventParticipantJoined, participant)
	s.logger.Info("participant joined", slog.Int("tournament_id", tournamentID), slog.String("alias", alias))

	return &JoinTournamentResult{Message: "Joined tournament successfully", Alias: alias}, nil
}

func (s *tournamentService) LeaveTournament(ctx context.Context, tournamentID int, alias string) (*LeaveTournamentResult, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, ErrAliasRequired
	}

	unlock := s.locks.Lock(tournamentID)
	defer unlock()

	tournament, err := s.loadTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	participant, err := s.participantRepo.FindByAlias(ctx, nil, tournamentID, alias)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to look up alias in tournament %d: %w", tournamentID, err)
	}
	if !tournament.IsPending() {
		return nil, ErrTournamentNotPending
	}

	if err := s.participantRepo.Delete(ctx, nil, participant.ID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to remove %q from tournament %d: %w", alias, tournamentID, err)
	}

	metrics.ParticipantLeft()
	s.events.PublishTournamentEvent(tournamentID, EventParticipantLeft, participant)
	s.logger.Info("participant left", slog.Int("tournament_id", tournamentID), slog.String("alias", alias))

	return &LeaveTournamentResult{Message: "Left tournament successfully"}, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.loadTournament(ctx, nil, tournamentID)
}

// GetTournamentDetails loads the tournament with its participants and matches.
func (s *tournamentService) GetTournamentDetails(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	var (
		tournament   *models.Tournament
		participants []*models.Participant
		matches      []*models.Match
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = s.loadTournament(gCtx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, nil, tournamentID, nil)
		if err != nil {
			return fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gCtx, nil, tournamentID, nil)
		if err != nil {
			return fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tournament.Participants = participantsToValues(participants)
	tournament.Matches = matchesToValues(matches)
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error) {
	filter := repositories.ListTournamentsFilter{Limit: input.Limit, Offset: input.Offset}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if input.Status != nil {
		status := models.TournamentStatus(strings.ToLower(*input.Status))
		switch status {
		case models.TournamentStatusPending, models.TournamentStatusStarted, models.TournamentStatusFinished:
			filter.Status = &status
		default:
			return nil, ErrInvalidTournamentStatus
		}
	}

	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) EnsureCreator(ctx context.Context, tournamentID, userID int) error {
	tournament, err := s.loadTournament(ctx, nil, tournamentID)
	if err != nil {
		return err
	}
	if tournament.CreatedBy != userID {
		return ErrCreatorOnly
	}
	return nil
}

func (s *tournamentService) loadTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
	}
	return tournament, nil
}
