package httpadapter

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coverly/internal/domain"
	"coverly/internal/extract"
	"coverly/internal/httpx"
	"coverly/internal/normalize"
	"coverly/internal/ports"
	"coverly/internal/services/grader"
	"coverly/internal/services/history"
)

type Server struct {
	grader  ports.Grader
	history ports.History
	log     *slog.Logger

	// Request bodies are cut off a little above the pipeline ceiling so
	// the normalizer, not the transport, decides the 413.
	publicBodyLimit int64
	vendorBodyLimit int64

	// trustProxy resolves the caller address from X-Forwarded-For /
	// X-Real-IP. Safe only behind a gateway that strips those headers
	// from client traffic; anyone who can set them directly could mint a
	// fresh rate-limit identity per request.
	trustProxy bool
}

func New(g ports.Grader, h ports.History, publicLimit, vendorLimit int64, trustProxy bool, log *slog.Logger) *Server {
	return &Server{
		grader:          g,
		history:         h,
		log:             log,
		publicBodyLimit: publicLimit + 1,
		vendorBodyLimit: vendorLimit + 1,
		trustProxy:      trustProxy,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/grade", s.handleGrade)

	r.Route("/orgs/{orgID}", func(api chi.Router) {
		api.Use(requireUser)
		api.Post("/vendors/{vendorID}/compliance-checks", s.handleVendorCheck)
		api.Get("/compliance-history", s.handleHistory)
	})

	return r
}

// requireUser trusts the fronting gateway's identity header. Auth itself
// is out of scope here; absent identity still gets a 401 rather than an
// empty created_by.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-ID") == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing X-User-ID", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type scorecardResponse struct {
	Checks           []domain.CheckResult `json:"checks"`
	Score            *int                 `json:"score,omitempty"`
	InsufficientData bool                 `json:"insufficient_data,omitempty"`
}

func toScorecardResponse(card domain.Scorecard) scorecardResponse {
	resp := scorecardResponse{Checks: card.Checks, InsufficientData: card.InsufficientData}
	if !card.InsufficientData {
		score := card.Score
		resp.Score = &score
	}
	return resp
}

type snapshotResponse struct {
	ID               string               `json:"id"`
	OrgID            string               `json:"org_id"`
	VendorID         string               `json:"vendor_id"`
	SnapshotDate     string               `json:"snapshot_date"`
	Checks           []domain.CheckResult `json:"checks"`
	Score            *int                 `json:"score,omitempty"`
	InsufficientData bool                 `json:"insufficient_data,omitempty"`
	CreatedBy        string               `json:"created_by"`
	CreatedAt        time.Time            `json:"created_at"`
}

func toSnapshotResponse(snap domain.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		ID:               snap.ID,
		OrgID:            snap.OrgID,
		VendorID:         snap.VendorID,
		SnapshotDate:     snap.SnapshotDate.Format("2006-01-02"),
		Checks:           snap.Checks,
		InsufficientData: snap.InsufficientData,
		CreatedBy:        snap.CreatedBy,
		CreatedAt:        snap.CreatedAt,
	}
	if !snap.InsufficientData {
		score := snap.Score
		resp.Score = &score
	}
	return resp
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	source, mimeType, ok := s.readDocument(w, r, s.publicBodyLimit)
	if !ok {
		return
	}
	card, err := s.grader.Grade(r.Context(), clientIP(r), r.UserAgent(), source, mimeType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toScorecardResponse(card))
}

func (s *Server) handleVendorCheck(w http.ResponseWriter, r *http.Request) {
	source, mimeType, ok := s.readDocument(w, r, s.vendorBodyLimit)
	if !ok {
		return
	}
	snap, err := s.grader.VendorCheck(r.Context(),
		chi.URLParam(r, "orgID"), chi.URLParam(r, "vendorID"), r.Header.Get("X-User-ID"),
		source, mimeType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSnapshotResponse(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.HistoryFilter{}
	if v := q.Get("vendor_id"); v != "" {
		filter.VendorID = &v
	}
	if v := q.Get("from"); v != "" {
		filter.From = &v
	}
	if v := q.Get("to"); v != "" {
		filter.To = &v
	}
	snaps, err := s.history.Query(r.Context(), chi.URLParam(r, "orgID"), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]snapshotResponse, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, toSnapshotResponse(snap))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"snapshots": out})
}

// clientIP strips the ephemeral source port from RemoteAddr so the rate
// limiter keys on the host, which stays stable across connections.
// middleware.RealIP (when enabled) rewrites RemoteAddr to a bare IP,
// which SplitHostPort rejects; the fallback covers that shape.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// readDocument pulls the raw document off the request. The Content-Type
// header declares the format; rejecting unknown types here avoids
// buffering megabytes the pipeline would refuse anyway.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, bool) {
	contentType := r.Header.Get("Content-Type")
	if !normalize.Accepted(contentType) {
		httpx.WriteError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "unsupported document format", nil)
		return nil, "", false
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	source, err := io.ReadAll(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "document exceeds size limit", nil)
		} else {
			httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "could not read request body", nil)
		}
		return nil, "", false
	}
	if len(source) == 0 {
		httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "empty document", nil)
		return nil, "", false
	}
	return source, contentType, true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var limited *grader.RateLimitedError
	switch {
	case errors.As(err, &limited):
		httpx.WriteRateLimited(w, limited.RetryAfterSeconds)
	case errors.Is(err, normalize.ErrUnsupportedFormat):
		httpx.WriteError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", err.Error(), nil)
	case errors.Is(err, normalize.ErrTooLarge):
		httpx.WriteError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error(), nil)
	case errors.Is(err, normalize.ErrCorrupt):
		httpx.WriteError(w, http.StatusBadRequest, "BAD_DOCUMENT", err.Error(), nil)
	case errors.Is(err, extract.ErrTimeout):
		httpx.WriteError(w, http.StatusGatewayTimeout, "EXTRACTION_TIMEOUT", err.Error(), nil)
	case errors.Is(err, extract.ErrUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "EXTRACTION_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, grader.ErrSubscriptionRequired):
		httpx.WriteError(w, http.StatusPaymentRequired, "SUBSCRIPTION_REQUIRED", err.Error(), nil)
	case errors.Is(err, history.ErrBadFilter):
		httpx.WriteError(w, http.StatusBadRequest, "BAD_FILTER", err.Error(), nil)
	case errors.Is(err, grader.ErrSnapshotWrite):
		s.log.Error("snapshot write failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "PERSISTENCE", "snapshot could not be recorded", nil)
	default:
		s.log.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
