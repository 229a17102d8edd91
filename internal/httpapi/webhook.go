package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"tradehook/internal/domain"
)

// Fixed diagnostics returned on payload validation failures.
const (
	msgMissingFields = "Missing required fields in webhook payload."
	msgInvalidSide   = "Invalid side provided in webhook payload."
	msgInvalidPrice  = "Invalid reference price provided in webhook payload."
	msgInvalidJSON   = "Invalid JSON in webhook payload."
)

const maxBodyBytes = 1 << 20

// signalRequest is the inbound alert payload. Close arrives as a JSON number
// or a quoted string depending on the alert template; extra fields are
// ignored.
type signalRequest struct {
	Side   string          `json:"side"`
	Symbol string          `json:"symbol"`
	Close  json.RawMessage `json:"close"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	req, err := decodeSignalRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if req.Side == "" || req.Symbol == "" || len(bytes.TrimSpace(req.Close)) == 0 {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	side, ok := domain.ParseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, msgInvalidSide)
		return
	}

	price, err := parsePrice(req.Close)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidPrice)
		return
	}

	out := s.resolver.Resolve(r.Context(), domain.Signal{
		Symbol: req.Symbol,
		Side:   side,
		Price:  price,
	})

	// On a successful placement the broker's order object is the body.
	if out.Placed() && len(out.RawOrder) > 0 {
		writeRaw(w, http.StatusOK, out.RawOrder)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// decodeSignalRequest parses the two transport shapes: the alert JSON object
// directly, or a relayed envelope carrying it under "body" as either a
// nested object or a JSON-encoded string.
func decodeSignalRequest(body []byte) (*signalRequest, error) {
	payload := body

	var env struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if inner := bytes.TrimSpace(env.Body); len(inner) > 0 && string(inner) != "null" {
			if inner[0] == '"' {
				var unquoted string
				if err := json.Unmarshal(inner, &unquoted); err != nil {
					return nil, err
				}
				payload = []byte(unquoted)
			} else {
				payload = inner
			}
		}
	}

	var req signalRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// parsePrice accepts the reference price as a JSON number or a quoted
// numeric string.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	return decimal.NewFromString(string(trimmed))
}
