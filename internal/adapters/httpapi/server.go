package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/app/catalog"
	"github.com/Overland-East-Bay/stockroom/internal/domain"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	"github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
)

// HeaderIdempotencyKey lets clients retry POSTs safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxBodyBytes = 1 << 20

// Server is the HTTP adapter over the catalog service.
type Server struct {
	Catalog *catalog.Service
	Idem    idempotency.Store
	Log     logrus.FieldLogger

	now func() time.Time
}

func NewServer(svc *catalog.Service, idem idempotency.Store, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	return &Server{
		Catalog: svc,
		Idem:    idem,
		Log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type listParams struct {
	Page  *int
	Limit *int
}

func bindListParams(q url.Values) (domain.ListQuery, error) {
	var p listParams
	if err := runtime.BindQueryParameter("form", true, false, "page", q, &p.Page); err != nil {
		return domain.ListQuery{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", q, &p.Limit); err != nil {
		return domain.ListQuery{}, err
	}
	var out domain.ListQuery
	if p.Page != nil {
		out.Page = *p.Page
	}
	if p.Limit != nil {
		out.Limit = *p.Limit
	}
	return out, nil
}

type checkNameParams struct {
	Name      string
	ExcludeID *string
}

func bindCheckNameParams(q url.Values) (checkNameParams, error) {
	var p checkNameParams
	if err := runtime.BindQueryParameter("form", true, true, "name", q, &p.Name); err != nil {
		return checkNameParams{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "excludeId", q, &p.ExcludeID); err != nil {
		return checkNameParams{}, err
	}
	return p, nil
}

func (p checkNameParams) exclude() *domain.ServerID {
	if p.ExcludeID == nil || *p.ExcludeID == "" {
		return nil
	}
	id := domain.ServerID(*p.ExcludeID)
	return &id
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (domain.OwnerID, bool) {
	owner, ok := OwnerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "missing subject", nil)
	}
	return owner, ok
}

func pathID(r *http.Request) domain.ServerID {
	return domain.ServerID(chi.URLParam(r, "id"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, r, http.StatusUnprocessableEntity, catalog.CodeValidation, "missing request body", nil)
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "malformed JSON body", map[string]any{"body": err.Error()})
		return false
	}
	return true
}

func invalidParams(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusUnprocessableEntity, catalog.CodeValidation, "invalid query parameters", map[string]any{"query": err.Error()})
}

// respondFunc runs a mutation and returns the status and payload to send.
type respondFunc func() (int, any, error)

// idempotent runs fn at most once per owner, route and Idempotency-Key.
//
//   - Replay the stored response if the same key arrives with the same canonical body
//   - Reject with 409 if the key is reused with a different body
//
// Only successful responses are stored. Requests without the header run
// unconditionally.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, owner domain.OwnerID, route string, canonical any, fn respondFunc) {
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" || s.Idem == nil {
		s.respond(w, r, fn)
		return
	}

	raw, err := json.Marshal(canonical)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	sum := sha256.Sum256(raw)
	bodyHash := hex.EncodeToString(sum[:])

	fp := idempotency.Fingerprint{
		Key:    idempotency.Key(key),
		Owner:  owner,
		Method: r.Method,
		Route:  route,
	}
	ctx := r.Context()
	if rec, ok, err := s.Idem.Get(ctx, fp); err != nil {
		writeAppError(w, r, s.Log, err)
		return
	} else if ok {
		if rec.BodyHash != bodyHash {
			writeError(w, r, http.StatusConflict, codeIdempotencyReuse, "idempotency key reuse with different payload", nil)
			return
		}
		s.Log.WithFields(logrus.Fields{"route": route, "key": key}).Debug("replaying idempotent response")
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	status, payload, err := fn()
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	if err := s.Idem.Put(ctx, fp, idempotency.Record{
		BodyHash:    bodyHash,
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   s.now(),
	}); err != nil {
		s.Log.WithError(err).WithField("route", route).Warn("storing idempotency record failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, fn respondFunc) {
	status, payload, err := fn()
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, payload)
}
