package worker

// report_worker.go renders the closing report of a shift to PDF and queues
// an email to the configured recipient.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shiftpos/internal/dto"
	"shiftpos/internal/infra"
	"shiftpos/internal/repository"
	"shiftpos/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EmailEnqueuer is satisfied by Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, job dto.EmailJob) error
}

type ShiftReportWorker struct {
	shifts      repository.ShiftReader
	emails      EmailEnqueuer
	storagePath string
	mailTo      string
}

// NewShiftReportWorker builds the worker; an empty mailTo only writes the PDF.
func NewShiftReportWorker(shifts repository.ShiftReader, emails EmailEnqueuer, storagePath, mailTo string) *ShiftReportWorker {
	return &ShiftReportWorker{shifts: shifts, emails: emails, storagePath: storagePath, mailTo: mailTo}
}

func (w *ShiftReportWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var job dto.ShiftReportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return permanent(fmt.Errorf("report_worker: invalid payload: %w", err))
	}
	shiftID, err := uuid.Parse(job.ShiftID)
	if err != nil {
		return permanent(fmt.Errorf("report_worker: invalid shift_id %q", job.ShiftID))
	}

	shift, err := w.shifts.FindShiftByID(ctx, shiftID)
	if errors.Is(err, repository.ErrNotFound) {
		return permanent(fmt.Errorf("report_worker: shift %s: %w", shiftID, err))
	}
	if err != nil {
		return fmt.Errorf("report_worker: load shift %s: %w", shiftID, err)
	}
	if !shift.IsClosed() {
		return permanent(fmt.Errorf("report_worker: shift %s is still %s", shiftID, shift.Status))
	}

	path, err := infra.GenerateShiftReportPDF(service.BuildReport(shift), w.storagePath)
	if err != nil {
		return fmt.Errorf("report_worker: %w", err)
	}
	log.Info().Str("shift_id", shiftID.String()).Str("path", path).Msg("report_worker: closing report written")

	if w.mailTo == "" || w.emails == nil {
		return nil
	}
	variance := "n/a"
	if shift.Variance != nil {
		variance = shift.Variance.StringFixed(2)
	}
	return w.emails.EnqueueEmail(ctx, dto.EmailJob{
		To:             w.mailTo,
		Subject:        fmt.Sprintf("Shift %s closed, variance %s", shiftID, variance),
		Body:           fmt.Sprintf("Cashier %s closed shift %s. The closing report is attached.", shift.CashierID, shiftID),
		AttachmentPath: path,
	})
}
