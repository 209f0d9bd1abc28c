package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubmissionCreatedEvent is emitted once per submission creation.
type SubmissionCreatedEvent struct {
	SubmissionID    uint      `json:"submission_id"`
	AssessmentID    uint      `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	CreatorID       uint      `json:"creator_id"`
	CreatorName     string    `json:"creator_name"`
	Source          string    `json:"source"`
	SentAt          time.Time `json:"sent_at"`
}

// SubmissionNotifier delivers submission lifecycle events to the
// notification collaborator.
type SubmissionNotifier interface {
	SubmissionCreated(ctx context.Context, event SubmissionCreatedEvent) error
}

type natsSubmissionNotifier struct {
	conn      *nats.Conn
	subject   string
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	nodeID    string
}

// NewNATSSubmissionNotifier publishes submission events on a NATS subject.
func NewNATSSubmissionNotifier(conn *nats.Conn, subject string, logger zerolog.Logger) SubmissionNotifier {
	return &natsSubmissionNotifier{
		conn:      conn,
		subject:   subject,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_notifier").Logger(),
		nodeID:    uuid.NewString(),
	}
}

func (n *natsSubmissionNotifier) SubmissionCreated(_ context.Context, event SubmissionCreatedEvent) error {
	if n.conn == nil || n.subject == "" {
		return nil
	}

	event.Source = n.nodeID
	event.SentAt = time.Now().UTC()
	event.AssessmentTitle = strings.TrimSpace(n.sanitizer.Sanitize(event.AssessmentTitle))
	event.CreatorName = strings.TrimSpace(n.sanitizer.Sanitize(event.CreatorName))

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := n.conn.Publish(n.subject, payload); err != nil {
		n.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish submission created event")
		return err
	}

	return nil
}
