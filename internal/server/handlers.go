package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmitUplenchwar2687/ratewarden/internal/recorder"
	"github.com/SmitUplenchwar2687/ratewarden/pkg/limiter"
)

// Keys travel in three places with two encodings. JSON bodies and query
// strings carry either "key" (plain text) or "key_b64" (standard
// base64, same as the rules file). Path segments carry unpadded
// url-safe base64, since '/' and '=' do not survive a path.

type keyRequest struct {
	Key    string `json:"key,omitempty"`
	KeyB64 string `json:"key_b64,omitempty"`
	// Amount left out means one.
	Amount *uint64 `json:"amount,omitempty"`
}

func (p *keyRequest) key() ([]byte, error) {
	return decodeKeyPair(p.Key, p.KeyB64)
}

func (p *keyRequest) amount() uint64 {
	if p.Amount == nil {
		return 1
	}
	return *p.Amount
}

func decodeKeyPair(key, keyB64 string) ([]byte, error) {
	if key != "" && keyB64 != "" {
		return nil, errors.New("key and key_b64 are mutually exclusive")
	}
	if keyB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			return nil, fmt.Errorf("decode key_b64: %w", err)
		}
		return raw, nil
	}
	return []byte(key), nil
}

func pathKey(r *http.Request) ([]byte, error) {
	enc := chi.URLParam(r, "key")
	if enc == "" {
		return nil, errors.New("missing key")
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return raw, nil
}

func limiterID(r *http.Request) limiter.ID {
	return limiter.ID(chi.URLParam(r, "limiter"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

type checkResponse struct {
	Allowed   bool    `json:"allowed"`
	Bypass    bool    `json:"bypass,omitempty"`
	Remaining *uint64 `json:"remaining,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// capture stores the attempt for replay and pushes the decision onto
// the live feed.
func (s *Server) capture(rec recorder.TrafficRecord, outcome, errMsg string) {
	if s.rec != nil {
		_ = s.rec.Record(rec)
	}
	s.hub.Broadcast(recorder.DecisionEvent{Record: rec, Outcome: outcome, Error: errMsg})
}

func (s *Server) trafficRecord(id limiter.ID, key []byte, amount uint64) recorder.TrafficRecord {
	return recorder.TrafficRecord{
		Time:      s.clock.Now(),
		Tick:      s.clock.Tick(),
		LimiterID: string(id),
		Key:       key,
		Amount:    amount,
	}
}

// handleCheck runs the admission sequence for a key: whitelist bypass
// first, then the quota check. It never consumes quota; callers that
// go on to do the work confirm it with /record.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key, err := req.key()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := limiterID(r)
	amount := req.amount()
	rec := s.trafficRecord(id, key, amount)

	bypass, err := s.admission.BypassLimit(r.Context(), id, key)
	if err != nil {
		s.capture(rec, recorder.OutcomeError, err.Error())
		writeEngineError(w, err)
		return
	}
	if bypass {
		s.capture(rec, recorder.OutcomeBypassed, "")
		writeJSON(w, http.StatusOK, checkResponse{Allowed: true, Bypass: true})
		return
	}

	checkErr := s.admission.IsAllowed(r.Context(), id, key, amount)
	if checkErr != nil && !errors.Is(checkErr, limiter.ErrExceedLimit) {
		s.capture(rec, recorder.OutcomeError, checkErr.Error())
		writeEngineError(w, checkErr)
		return
	}

	// The check already persisted any replenishment, so the preview is
	// simply the current state.
	var remaining *uint64
	if state, tracked, err := s.engine.PreviewQuota(r.Context(), id, key); err == nil && tracked {
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", state.Remaining))
		remaining = &state.Remaining
	}

	if checkErr != nil {
		s.capture(rec, recorder.OutcomeDenied, "")
		writeJSON(w, http.StatusTooManyRequests, checkResponse{Allowed: false, Remaining: remaining, Error: "rate limit exceeded"})
		return
	}
	s.capture(rec, recorder.OutcomeAllowed, "")
	writeJSON(w, http.StatusOK, checkResponse{Allowed: true, Remaining: remaining})
}

// handleRecord consumes quota after the caller performed the admitted
// work. Attempts are not re-captured here; the /check that preceded
// them already was.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	key, err := req.key()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := limiterID(r)
	if err := s.admission.Record(r.Context(), id, key, req.amount()); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// handleBypass reports whether a key skips limiting entirely.
func (s *Server) handleBypass(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, err := decodeKeyPair(q.Get("key"), q.Get("key_b64"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bypass, err := s.admission.BypassLimit(r.Context(), limiterID(r), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bypass": bypass})
}

func (s *Server) handleRulePut(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var rule limiter.Rule
	if !decodeBody(w, r, &rule) {
		return
	}
	if err := s.engine.UpdateRule(r.Context(), limiterID(r), key, &rule); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func (s *Server) handleRuleGet(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule, err := s.engine.Rule(r.Context(), limiterID(r), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if rule == nil {
		writeError(w, http.StatusNotFound, "no rule for key")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.UpdateRule(r.Context(), limiterID(r), key, nil); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleQuotaGet(w http.ResponseWriter, r *http.Request) {
	key, err := pathKey(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, tracked, err := s.engine.PreviewQuota(r.Context(), limiterID(r), key)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tracked":      tracked,
		"last_updated": state.LastUpdated,
		"remaining":    state.Remaining,
	})
}

func (s *Server) handleWhitelistGet(w http.ResponseWriter, r *http.Request) {
	filters, err := s.engine.Whitelist(r.Context(), limiterID(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if filters == nil {
		filters = []limiter.KeyFilter{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": filters})
}

func (s *Server) handleWhitelistPut(w http.ResponseWriter, r *http.Request) {
	var filters []limiter.KeyFilter
	if !decodeBody(w, r, &filters) {
		return
	}
	if err := s.engine.ResetWhitelist(r.Context(), limiterID(r), filters); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(filters)})
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	var filter limiter.KeyFilter
	if !decodeBody(w, r, &filter) {
		return
	}
	if err := s.engine.AddWhitelist(r.Context(), limiterID(r), filter); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"added": true})
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	var filter limiter.KeyFilter
	if !decodeBody(w, r, &filter) {
		return
	}
	if err := s.engine.RemoveWhitelist(r.Context(), limiterID(r), filter); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// writeEngineError maps engine failures onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, limiter.ErrInvalidRule), errors.Is(err, limiter.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, limiter.ErrFilterExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, limiter.ErrFilterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, limiter.ErrTooManyFilters):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, limiter.ErrExceedLimit):
		writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
