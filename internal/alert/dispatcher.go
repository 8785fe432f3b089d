package alert

import (
	"context"
	"log"
	"time"

	"github.com/vividmind/botwatch/internal/metrics"
	"github.com/vividmind/botwatch/internal/notify"
	"github.com/vividmind/botwatch/internal/summary"
)

// AlertStore records when a summary last triggered an alert.
type AlertStore interface {
	StampAlerted(ctx context.Context, taskUUID string, at time.Time) error
}

// Dispatcher evaluates summaries and sends the resulting per-audience
// messages. Delivery failures are isolated per audience and never abort the
// cycle that triggered them.
type Dispatcher struct {
	router *notify.Router
	store  AlertStore
}

func NewDispatcher(router *notify.Router, store AlertStore) *Dispatcher {
	return &Dispatcher{router: router, store: store}
}

// Dispatch evaluates one summary and sends every non-empty audience bucket.
// It returns the decision so callers can log or test what fired.
func (d *Dispatcher) Dispatch(ctx context.Context, s *summary.TaskSummary) *Decision {
	dec := Evaluate(s)
	if !dec.Any() {
		return dec
	}

	log.Printf("Alert conditions met for task %s (deduplication disabled)", s.TaskUUID)

	if len(dec.DevReasons) > 0 {
		d.send(ctx, notify.AudienceDeveloper, BuildDeveloperMessage(s, dec))
	}
	// Metrics alone never trigger a client message; they only ride along
	// when a client-tagged condition fired.
	if len(dec.ClientIssues) > 0 {
		d.send(ctx, notify.AudienceClient, BuildClientMessage(s, dec))
	}
	if len(dec.ManagerReasons) > 0 {
		d.send(ctx, notify.AudienceManager, BuildManagerMessage(s, dec))
	}

	// Observability only: with deduplication disabled this stamp has no
	// effect on future evaluations.
	if err := d.store.StampAlerted(ctx, s.TaskUUID, time.Now().UTC()); err != nil {
		log.Printf("Failed to stamp last_alerted_at for task %s: %v", s.TaskUUID, err)
	}

	return dec
}

func (d *Dispatcher) send(ctx context.Context, audience notify.Audience, msg notify.Message) {
	if err := d.router.Send(ctx, msg, audience); err != nil {
		metrics.RecordAlertFailed(string(audience))
		return
	}

	metrics.RecordAlertDispatched(string(audience))
	log.Printf("Sent %s alert", audience)
}
