package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tracker/internal/core"
	"tracker/internal/ledger"
	"tracker/internal/log"
)

// errBadRequest marks malformed path or query parameters.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are gone by now; a failed write means the client left.
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrEmptyResult):
		return http.StatusNotFound
	case errors.Is(err, core.ErrParse),
		errors.Is(err, core.ErrEmptyConcept),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrInvalidMonth):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it as {"error": "..."}. Server errors are
// reported without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		msg = http.StatusText(status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s %q is not a number", name, raw)
	}
	return n, nil
}

// pathYearMonth reads {year} and {month}. Only the number format is checked
// here; range errors come back from the ledger as validation failures.
func pathYearMonth(r *http.Request) (year, month int, err error) {
	if year, err = pathInt(r, "year"); err != nil {
		return 0, 0, err
	}
	if month, err = pathInt(r, "month"); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s %q is not a boolean", name, raw)
	}
	return v, nil
}

func queryAmount(r *http.Request, name string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, badRequest("%s %q is not an amount", name, raw)
	}
	return v, nil
}

func queryDate(r *http.Request, name string) (core.Date, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, false, badRequest("%s %q is not a date", name, raw)
	}
	return d, true, nil
}

// dateRange resolves ?from=&to= against l. A missing bound defaults to the
// ledger's first or last date. ok is false when neither bound is given.
func dateRange(r *http.Request, l *ledger.Ledger) (from, to core.Date, ok bool, err error) {
	from, hasFrom, err := queryDate(r, "from")
	if err != nil {
		return core.Date{}, core.Date{}, false, err
	}
	to, hasTo, err := queryDate(r, "to")
	if err != nil {
		return core.Date{}, core.Date{}, false, err
	}
	if !hasFrom && !hasTo {
		return core.Date{}, core.Date{}, false, nil
	}

	first, last, nonEmpty := l.Span()
	switch {
	case !hasFrom && nonEmpty:
		from = first
	case !hasFrom:
		from = to
	case !hasTo && nonEmpty:
		to = last
	case !hasTo:
		to = from
	}
	if to.Before(from.Time) {
		if hasFrom && hasTo {
			return core.Date{}, core.Date{}, false, badRequest("from %s is after to %s", from, to)
		}
		// a single bound outside the ledger span selects nothing
		if hasFrom {
			to = from
		} else {
			from = to
		}
	}
	return from, to, true, nil
}
