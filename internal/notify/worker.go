package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/campusfind/apiserver/internal/mq"
)

// Worker consumes claim notices from the queue and mails them to reporters.
// It runs in its own process (the worker command), decoupled from the claim
// request path.
type Worker struct {
	queue  *mq.MQ
	mailer Mailer
	logger *slog.Logger
}

func NewWorker(queue *mq.MQ, mailer Mailer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{queue: queue, mailer: mailer, logger: logger}
}

// Run blocks consuming the claim-notification channel until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Subscribe(ctx, Channel, w.handle)
}

// handle renders and sends one notice. A malformed payload is dropped (ack)
// since redelivery cannot fix it; a transport error returns the message to
// the queue for another attempt.
func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var notice ClaimNotice
	if err := json.Unmarshal(msg.Data, &notice); err != nil {
		w.logger.Error("dropping malformed claim notice", "message_id", msg.ID, "error", err)
		return nil
	}

	email, err := RenderEmail(notice)
	if err != nil {
		w.logger.Error("dropping unrenderable claim notice", "item_id", notice.ItemID, "error", err)
		return nil
	}

	if err := w.mailer.Send(email); err != nil {
		w.logger.Warn("claim notice transport error, will retry",
			"item_id", notice.ItemID, "to", email.To, "error", err)
		return err
	}

	w.logger.Info("claim notice sent", "item_id", notice.ItemID, "to", email.To)
	return nil
}
