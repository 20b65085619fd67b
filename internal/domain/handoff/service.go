package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/carecircle/api/internal/platform/db"
	"github.com/carecircle/api/internal/platform/events"
	"github.com/carecircle/api/internal/platform/sanitize"
	"github.com/carecircle/api/internal/platform/translate"
)

var ErrTranslationUnavailable = errors.New("translation is not configured")

type Service struct {
	handoffs   HandoffRepository
	tx         db.TxFunc
	translator translate.Translator
	events     events.Publisher
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(handoffs HandoffRepository, tx db.TxFunc, translator translate.Translator, pub events.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		handoffs:   handoffs,
		tx:         tx,
		translator: translator,
		events:     pub,
		logger:     logger.With().Str("component", "handoff").Logger(),
		now:        time.Now,
	}
}

// Publish stores h as PUBLISHED together with its first revision. The
// summary must already be sanitized by the caller; the title is cleaned here.
func (s *Service) Publish(ctx context.Context, h *Handoff, payload json.RawMessage) (*Revision, error) {
	if h.CircleID == uuid.Nil || h.PatientID == uuid.Nil {
		return nil, fmt.Errorf("circle_id and patient_id are required")
	}
	h.Title = sanitize.Title(h.Title)
	if h.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if h.Type == "" {
		h.Type = TypeGeneral
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	now := s.now().UTC()
	h.Status = StatusPublished
	h.PublishedAt = &now

	rev := &Revision{
		Summary:   h.Summary,
		Payload:   payload,
		CreatedBy: h.CreatedBy,
	}
	err := s.tx(ctx, func(ctx context.Context) error {
		if err := s.handoffs.Create(ctx, h); err != nil {
			return fmt.Errorf("create handoff: %w", err)
		}
		rev.HandoffID = h.ID
		if err := s.handoffs.CreateRevision(ctx, rev); err != nil {
			return fmt.Errorf("create handoff revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := events.New(events.TypeHandoffPublished, h.CircleID, map[string]any{
		"handoffId": h.ID,
		"type":      h.Type,
	})
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("handoff_id", h.ID.String()).Msg("handoff event not published")
	}
	return rev, nil
}

func (s *Service) GetHandoff(ctx context.Context, id uuid.UUID) (*Handoff, error) {
	return s.handoffs.GetByID(ctx, id)
}

func (s *Service) ListHandoffs(ctx context.Context, circleID uuid.UUID, limit, offset int) ([]*Handoff, int, error) {
	return s.handoffs.ListByCircle(ctx, circleID, limit, offset)
}

func (s *Service) ListRevisions(ctx context.Context, handoffID uuid.UUID) ([]*Revision, error) {
	return s.handoffs.ListRevisions(ctx, handoffID)
}

type translationPayload struct {
	Language     string `json:"language"`
	FromRevision int    `json:"fromRevision"`
}

// Translate renders the most recent untranslated revision into target and
// stores the result as a new revision.
func (s *Service) Translate(ctx context.Context, h *Handoff, actorID uuid.UUID, target language.Tag) (*Revision, error) {
	if s.translator == nil {
		return nil, ErrTranslationUnavailable
	}
	revs, err := s.handoffs.ListRevisions(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	var source *Revision
	for i := len(revs) - 1; i >= 0; i-- {
		if revs[i].Language == "" {
			source = revs[i]
			break
		}
	}
	if source == nil {
		return nil, fmt.Errorf("handoff has no source revision")
	}

	// Stored summaries are entity-escaped; the model sees plain text and the
	// output is escaped again before storage.
	out, err := s.translator.Translate(ctx, html.UnescapeString(source.Summary), target)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(translationPayload{Language: target.String(), FromRevision: source.RevisionNumber})
	if err != nil {
		return nil, err
	}
	rev := &Revision{
		HandoffID: h.ID,
		Language:  target.String(),
		Summary:   sanitize.EscapeForMarkup(out),
		Payload:   payload,
		CreatedBy: actorID,
	}
	if err := s.handoffs.CreateRevision(ctx, rev); err != nil {
		return nil, fmt.Errorf("create handoff revision: %w", err)
	}
	return rev, nil
}
