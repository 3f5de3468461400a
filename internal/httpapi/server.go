package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/Abdullah1738/juno-luts/internal/lutservice"
	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

const maxBodyBytes = 64 << 10

// Service is the part of lutservice.Service the API exposes.
type Service interface {
	Slot(ctx context.Context) (uint64, error)
	Create(ctx context.Context, p lutservice.CreateParams) (*lut.Table, error)
	Extend(ctx context.Context, key, caller solana.Pubkey, addrs []solana.Pubkey) (*lut.Table, error)
	Freeze(ctx context.Context, key, caller solana.Pubkey) (*lut.Table, error)
	Deactivate(ctx context.Context, key, caller solana.Pubkey) (*lut.Table, error)
	Close(ctx context.Context, key, caller solana.Pubkey) error
	Get(ctx context.Context, key solana.Pubkey) (*lut.Table, error)
	List(ctx context.Context, authority solana.Pubkey) ([]*lut.Table, error)
	Resolve(ctx context.Context, key solana.Pubkey, index int) (solana.Pubkey, error)
	Readiness(ctx context.Context, key solana.Pubkey) (lutservice.Readiness, error)
}

type Server struct {
	svc Service
	log *zap.Logger
}

func New(svc Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/slot", s.slot).Methods(http.MethodGet)
	v1.HandleFunc("/tables", s.createTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables", s.listTables).Methods(http.MethodGet)
	v1.HandleFunc("/tables/{address}", s.getTable).Methods(http.MethodGet)
	v1.HandleFunc("/tables/{address}/extend", s.extendTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{address}/freeze", s.freezeTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{address}/deactivate", s.deactivateTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{address}/close", s.closeTable).Methods(http.MethodPost)
	v1.HandleFunc("/tables/{address}/ready", s.readiness).Methods(http.MethodGet)
	v1.HandleFunc("/tables/{address}/addresses/{index:[0-9]+}", s.resolve).Methods(http.MethodGet)
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = xid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(lutservice.WithRequestID(r.Context(), id)))
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", id),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

var errBadRequest = errors.New("bad request")

// statusOf maps service errors onto HTTP status codes and wire kinds.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, lutservice.ErrNotClosable):
		return http.StatusConflict, "not_closable"
	case errors.Is(err, lut.ErrAccountNotFound):
		return http.StatusNotFound, lut.Kind(err)
	case errors.Is(err, lut.ErrUnauthorized):
		return http.StatusForbidden, lut.Kind(err)
	case errors.Is(err, lut.ErrAccountOccupied),
		errors.Is(err, lut.ErrFrozen),
		errors.Is(err, lut.ErrAlreadyFrozen),
		errors.Is(err, lut.ErrDeactivated),
		errors.Is(err, lut.ErrAlreadyDeactivated):
		return http.StatusConflict, lut.Kind(err)
	case errors.Is(err, lut.ErrInvalidLookupTable):
		return http.StatusBadRequest, lut.Kind(err)
	case errors.Is(err, lut.ErrLutNotReady):
		return http.StatusTooEarly, lut.Kind(err)
	case errors.Is(err, lut.ErrMaxAddressesExceeded):
		return http.StatusUnprocessableEntity, lut.Kind(err)
	case errors.Is(err, lut.ErrIndexOutOfRange):
		return http.StatusNotFound, lut.Kind(err)
	default:
		return http.StatusInternalServerError, ""
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := statusOf(err)
	s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathKey(r *http.Request) (solana.Pubkey, error) {
	pk, err := solana.ParsePubkey(mux.Vars(r)["address"])
	if err != nil {
		return solana.Pubkey{}, fmt.Errorf("%w: address: %v", errBadRequest, err)
	}
	return pk, nil
}

func (s *Server) slot(w http.ResponseWriter, r *http.Request) {
	slot, err := s.svc.Slot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"slot": slot})
}

type createRequest struct {
	Authority solana.Pubkey   `json:"authority"`
	Seed      *uint64         `json:"seed,omitempty"`
	Table     *solana.Pubkey  `json:"table,omitempty"`
	Addresses []solana.Pubkey `json:"addresses,omitempty"`
}

func (s *Server) createTable(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	p := lutservice.CreateParams{Authority: req.Authority, Addresses: req.Addresses}
	if req.Table != nil {
		p.Table = *req.Table
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	} else {
		slot, err := s.svc.Slot(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		p.Seed = slot
	}

	t, err := s.svc.Create(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	var authority solana.Pubkey
	if a := r.URL.Query().Get("authority"); a != "" {
		pk, err := solana.ParsePubkey(a)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: authority: %v", errBadRequest, err))
			return
		}
		authority = pk
	}
	tables, err := s.svc.List(r.Context(), authority)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.svc.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

type mutateRequest struct {
	Authority solana.Pubkey   `json:"authority"`
	Addresses []solana.Pubkey `json:"addresses,omitempty"`
}

// mutation decodes the table key and body shared by the lifecycle routes.
func (s *Server) mutation(w http.ResponseWriter, r *http.Request) (solana.Pubkey, mutateRequest, bool) {
	var req mutateRequest
	key, err := pathKey(r)
	if err == nil {
		err = decodeBody(w, r, &req)
	}
	if err != nil {
		s.writeError(w, err)
		return solana.Pubkey{}, req, false
	}
	return key, req, true
}

func (s *Server) respondTable(w http.ResponseWriter, t *lut.Table, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) extendTable(w http.ResponseWriter, r *http.Request) {
	key, req, ok := s.mutation(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Extend(r.Context(), key, req.Authority, req.Addresses)
	s.respondTable(w, t, err)
}

func (s *Server) freezeTable(w http.ResponseWriter, r *http.Request) {
	key, req, ok := s.mutation(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Freeze(r.Context(), key, req.Authority)
	s.respondTable(w, t, err)
}

func (s *Server) deactivateTable(w http.ResponseWriter, r *http.Request) {
	key, req, ok := s.mutation(w, r)
	if !ok {
		return
	}
	t, err := s.svc.Deactivate(r.Context(), key, req.Authority)
	s.respondTable(w, t, err)
}

func (s *Server) closeTable(w http.ResponseWriter, r *http.Request) {
	key, req, ok := s.mutation(w, r)
	if !ok {
		return
	}
	if err := s.svc.Close(r.Context(), key, req.Authority); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rd, err := s.svc.Readiness(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rd)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: index: %v", errBadRequest, err))
		return
	}
	pk, err := s.svc.Resolve(r.Context(), key, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"index": index, "address": pk})
}
