package worker

// email_worker.go processes QueueEmail: closing reports mailed over SMTP.

import (
	"context"
	"encoding/json"
	"fmt"

	"shiftpos/internal/dto"

	"github.com/rs/zerolog/log"
)

// Mailer is satisfied by infra.Mailer.
type Mailer interface {
	Enabled() bool
	Send(to, subject, body, attachmentPath string) error
}

type EmailWorker struct {
	mailer Mailer
}

func NewEmailWorker(mailer Mailer) *EmailWorker {
	return &EmailWorker{mailer: mailer}
}

func (w *EmailWorker) Process(_ context.Context, raw json.RawMessage) error {
	var job dto.EmailJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return permanent(fmt.Errorf("email_worker: invalid payload: %w", err))
	}
	if job.To == "" {
		return permanent(fmt.Errorf("email_worker: empty recipient"))
	}
	if w.mailer == nil || !w.mailer.Enabled() {
		log.Warn().Str("to", job.To).Msg("email_worker: smtp not configured, skipping")
		return nil
	}

	if err := w.mailer.Send(job.To, job.Subject, job.Body, job.AttachmentPath); err != nil {
		return fmt.Errorf("email_worker: send to %s: %w", job.To, err)
	}
	log.Info().Str("to", job.To).Msg("email_worker: report sent")
	return nil
}
