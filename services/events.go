package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Dosada05/pong-tournament/models"
	"github.com/Dosada05/pong-tournament/storage"
)

const (
	EventParticipantJoined  = "PARTICIPANT_JOINED"
	EventParticipantLeft    = "PARTICIPANT_LEFT"
	EventTournamentStarted  = "TOURNAMENT_STARTED"
	EventMatchUpdated       = "MATCH_UPDATED"
	EventFinalCreated       = "FINAL_CREATED"
	EventTournamentFinished = "TOURNAMENT_FINISHED"
)

// EventPublisher fans tournament events out to watchers. *brackets.Hub
// implements it.
type EventPublisher interface {
	PublishTournamentEvent(tournamentID int, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) PublishTournamentEvent(int, string, interface{}) {}

type tournamentEvent struct {
	eventType string
	payload   interface{}
}

// eventBatch collects events inside a transaction; they are published only
// once the transaction has committed.
type eventBatch struct {
	tournamentID int
	events       []tournamentEvent
	champion     *ChampionResult
}

func (b *eventBatch) add(eventType string, payload interface{}) {
	b.events = append(b.events, tournamentEvent{eventType: eventType, payload: payload})
}

func (b *eventBatch) publish(p EventPublisher) {
	for _, e := range b.events {
		p.PublishTournamentEvent(b.tournamentID, e.eventType, e.payload)
	}
}

// ResultsArchiver stores the final state of a finished tournament.
type ResultsArchiver interface {
	ArchiveResults(ctx context.Context, tournament *models.Tournament) (*storage.UploadResult, error)
}

type resultsArchiver struct {
	uploader storage.FileUploader
}

// NewResultsArchiver writes results as JSON objects through uploader.
func NewResultsArchiver(uploader storage.FileUploader) ResultsArchiver {
	return &resultsArchiver{uploader: uploader}
}

func ResultsKey(tournamentID int) string {
	return "tournaments/" + strconv.Itoa(tournamentID) + "/results.json"
}

func (a *resultsArchiver) ArchiveResults(ctx context.Context, tournament *models.Tournament) (*storage.UploadResult, error) {
	body, err := json.Marshal(tournament)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results for tournament %d: %w", tournament.ID, err)
	}
	return a.uploader.Upload(ctx, ResultsKey(tournament.ID), "application/json", bytes.NewReader(body))
}
