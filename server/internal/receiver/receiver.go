package receiver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/contextcommerce/contextcommerce/pkg/types"
	"github.com/contextcommerce/contextcommerce/server/internal/metrics"
	"github.com/contextcommerce/contextcommerce/server/internal/store"
)

// MaxBodyBytes caps the size of a POST /events body.
const MaxBodyBytes = 1 << 20

// Options configures ingest limits.
type Options struct {
	MaxBatch       int
	RequireConsent bool
}

// Batch is the POST /events request body.
type Batch struct {
	Events []types.QueuedEvent `json:"events"`
}

// Response is the 202 body returned for an accepted batch.
type Response struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// Receiver is the http.Handler for POST /events.
type Receiver struct {
	store   store.Store
	metrics *metrics.Metrics
	schema  *jsonschema.Schema
	opts    Options
	now     func() time.Time
}

// New creates a Receiver that writes accepted events to st.
func New(st store.Store, m *metrics.Metrics, opts Options) (*Receiver, error) {
	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Receiver{store: st, metrics: m, schema: sch, opts: opts, now: time.Now}, nil
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	var batch Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if rc.opts.MaxBatch > 0 && len(batch.Events) > rc.opts.MaxBatch {
		jsonErr(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch of %d events exceeds limit of %d", len(batch.Events), rc.opts.MaxBatch))
		return
	}
	if err := rc.validate(body); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	now := rc.now().UTC()
	accepted := make([]types.StoredEvent, 0, len(batch.Events))
	dropped := 0
	for _, e := range batch.Events {
		if rc.opts.RequireConsent && !consented(e) {
			dropped++
			continue
		}
		accepted = append(accepted, types.StoredEvent{
			QueuedEvent: e,
			ID:          uuid.NewString(),
			ReceivedAt:  now,
		})
	}

	if len(accepted) > 0 {
		if err := rc.store.AppendEvents(r.Context(), accepted); err != nil {
			slog.Error("receiver: store events", "count", len(accepted), "err", err)
			jsonErr(w, http.StatusInternalServerError, "failed to store events")
			return
		}
	}

	if rc.metrics != nil {
		rc.metrics.EventsAccepted.Add(float64(len(accepted)))
		if dropped > 0 {
			rc.metrics.EventsDropped.WithLabelValues(metrics.DropNoConsent).Add(float64(dropped))
		}
	}

	slog.Debug("receiver: batch stored", "accepted", len(accepted), "dropped", dropped)
	jsonResp(w, http.StatusAccepted, Response{Accepted: len(accepted), Dropped: dropped})
}

func (rc *Receiver) validate(body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := rc.schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid event batch: %w", err)
	}
	return nil
}

// consented reports whether e may be kept. Events without a consent entry
// in their metadata are kept.
func consented(e types.QueuedEvent) bool {
	v, ok := e.Metadata["consent"]
	if !ok {
		return true
	}
	s, _ := v.(string)
	return types.ConsentStatus(s) == types.ConsentGranted
}

func jsonResp(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	jsonResp(w, status, map[string]string{"error": msg})
}
