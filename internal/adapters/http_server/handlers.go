package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/adapters/pms"
	"hotel_rates/internal/domain"
)

// maxRangeDays bounds preview/auto-price/promote ranges.
const maxRangeDays = 400

type RateAPI interface {
	ApplyOverrides(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID string, overrides []domain.RateOverride, source domain.Source) (domain.BatchReport, error)
	PreviewCalendar(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) ([]domain.PreviewRow, error)
	AutoPrice(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) (domain.BatchReport, error)
	PromotePredictions(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) (domain.BatchReport, error)
}

type ConfigAPI interface {
	GetConfig(ctx context.Context, hotelID string) (domain.HotelPricingConfig, error)
	SaveConfig(ctx context.Context, cfg domain.HotelPricingConfig) error
	SyncRatePlans(ctx context.Context, hotelID, pmsPropertyID string) (map[string]string, error)
}

type ContextAPI interface {
	GetHotelContext(ctx context.Context, hotelID string) (domain.HotelContext, error)
	SaveDecisions(ctx context.Context, decisions []domain.RatePrediction) (domain.DecisionReport, error)
}

type PushAPI interface {
	Push(ctx context.Context, propertyID string, items []domain.PushItem) domain.PushReport
}

type Handlers struct {
	Rates   RateAPI
	Config  ConfigAPI
	Context ContextAPI
	Pusher  PushAPI

	// AISecret gates the AI bridge routes; empty leaves them unmounted.
	AISecret string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1/hotels/{hotelID}", func(r chi.Router) {
		r.Get("/config", h.getConfig)
		r.Put("/config", h.putConfig)
		r.Post("/rate-plans/sync", h.syncRatePlans)
		r.Get("/calendar/preview", h.previewCalendar)
		r.Post("/overrides", h.applyOverrides)
		r.Post("/auto-price", h.autoPrice)
		r.Post("/predictions/promote", h.promotePredictions)
	})

	if h.AISecret != "" {
		s.mux.Route("/v1/ai", func(r chi.Router) {
			r.Use(RequireSecret(aiSecretHeader, h.AISecret))
			r.Get("/hotels/{hotelID}/context", h.getContext)
			r.Post("/decisions", h.saveDecisions)
		})
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrConfigMissing):
		writeProblem(w, http.StatusNotFound, "Config Missing", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrRateMapMissing):
		writeProblem(w, http.StatusConflict, "Rate Map Missing", err.Error())
	case errors.Is(err, domain.ErrInvalidConfig):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Config", err.Error())
	case errors.Is(err, pms.ErrNotFound), errors.Is(err, pms.ErrUnauthorized),
		errors.Is(err, pms.ErrForbidden), errors.Is(err, pms.ErrRejected):
		writeProblem(w, http.StatusBadGateway, "PMS Error", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Timeout", "upstream deadline exceeded")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal response failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write response body failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// validRange checks a YYYY-MM-DD range and writes a problem when it is not usable.
func validRange(w http.ResponseWriter, start, end string) bool {
	s, err1 := domain.ParseDate(start)
	e, err2 := domain.ParseDate(end)
	switch {
	case err1 != nil || err2 != nil:
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "start and end must be YYYY-MM-DD")
	case e.Before(s):
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "end is before start")
	case e.Sub(s).Hours()/24 > maxRangeDays:
		writeProblem(w, http.StatusBadRequest, "Invalid Range", "range is too long")
	default:
		return true
	}
	return false
}

func parseSource(s string) (domain.Source, bool) {
	src := domain.Source(strings.ToUpper(strings.TrimSpace(s)))
	switch {
	case src == "":
		return domain.SourceManual, true
	case src == domain.SourceManual, src == domain.SourceSentinel, src == domain.SourceAuto, src.IsAI():
		return src, true
	}
	return "", false
}

// ---- config ----

func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Config.GetConfig(r.Context(), chi.URLParam(r, "hotelID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configFromDomain(cfg))
}

func (h *Handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	var in configDTO
	if !decodeBody(w, r, &in) {
		return
	}
	cfg := in.toDomain()
	cfg.HotelID = chi.URLParam(r, "hotelID")
	if err := h.Config.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) syncRatePlans(w http.ResponseWriter, r *http.Request) {
	var in syncRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.PMSPropertyID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "pms_property_id is required")
		return
	}
	m, err := h.Config.SyncRatePlans(r.Context(), chi.URLParam(r, "hotelID"), in.PMSPropertyID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rate_id_map": m})
}

// ---- rates ----

func (h *Handlers) previewCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if !validRange(w, start, end) {
		return
	}
	rows, err := h.Rates.PreviewCalendar(r.Context(), chi.URLParam(r, "hotelID"),
		q.Get("pms_property_id"), q.Get("room_type_id"), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": rows})
}

func (h *Handlers) applyOverrides(w http.ResponseWriter, r *http.Request) {
	var in overridesRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Push && in.PMSPropertyID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "pms_property_id is required to push")
		return
	}
	src, ok := parseSource(in.Source)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid Source", "unknown source "+in.Source)
		return
	}
	overrides := make([]domain.RateOverride, 0, len(in.Overrides))
	for _, o := range in.Overrides {
		overrides = append(overrides, domain.RateOverride{Date: strings.TrimSpace(o.Date), Rate: domain.ParseRate(o.Rate)})
	}
	report, err := h.Rates.ApplyOverrides(r.Context(), chi.URLParam(r, "hotelID"), in.PMSPropertyID, in.BaseRoomTypeID, overrides, src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondBatch(w, r, report, in.Push)
}

func (h *Handlers) autoPrice(w http.ResponseWriter, r *http.Request) {
	h.rangeBatch(w, r, h.Rates.AutoPrice)
}

func (h *Handlers) promotePredictions(w http.ResponseWriter, r *http.Request) {
	h.rangeBatch(w, r, h.Rates.PromotePredictions)
}

type rangeFn func(ctx context.Context, hotelID, pmsPropertyID, baseRoomTypeID, start, end string) (domain.BatchReport, error)

func (h *Handlers) rangeBatch(w http.ResponseWriter, r *http.Request, fn rangeFn) {
	var in rangeRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.Push && in.PMSPropertyID == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "pms_property_id is required to push")
		return
	}
	if !validRange(w, in.Start, in.End) {
		return
	}
	report, err := fn(r.Context(), chi.URLParam(r, "hotelID"), in.PMSPropertyID, in.BaseRoomTypeID, in.Start, in.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondBatch(w, r, report, in.Push)
}

// respondBatch optionally pushes the payload. DB writes stay committed whatever the push does.
func (h *Handlers) respondBatch(w http.ResponseWriter, r *http.Request, report domain.BatchReport, push bool) {
	out := batchResponse{Batch: report}
	if push && h.Pusher != nil && len(report.Payload) > 0 {
		pr := h.Pusher.Push(r.Context(), report.PropertyID, report.Payload)
		out.Push = &pr
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- AI bridge ----

func (h *Handlers) getContext(w http.ResponseWriter, r *http.Request) {
	hc, err := h.Context.GetHotelContext(r.Context(), chi.URLParam(r, "hotelID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hc)
}

func (h *Handlers) saveDecisions(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Decisions []decisionDTO `json:"decisions"`
	}
	if !decodeBody(w, r, &in) {
		return
	}
	ds := make([]domain.RatePrediction, 0, len(in.Decisions))
	for _, d := range in.Decisions {
		ds = append(ds, d.toDomain())
	}
	rep, err := h.Context.SaveDecisions(r.Context(), ds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
