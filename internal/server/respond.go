package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/apperr"
	"github.com/xtding233/banner-gacha/internal/gacha"
	"github.com/xtding233/banner-gacha/internal/logger"
)

var (
	errInvalidBody  = apperr.New(apperr.CodeInvalidInput, "invalid request body")
	errInvalidParam = apperr.New(apperr.CodeInvalidInput, "invalid parameter")
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError renders err as a google.rpc.Status body. Unclassified errors are logged
// and reported without their message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	st := apperr.ToStatus(err)
	status := httpStatus(st.Code())
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", "error", err)
	} else {
		logger.FromContext(r.Context()).Debug("Request rejected", "error", err, "code", apperr.GetCode(err))
	}

	body, merr := protojson.Marshal(st.Proto())
	if merr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// httpStatus follows the grpc-gateway mapping from status codes to HTTP.
func httpStatus(c codes.Code) int {
	switch c {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into req and runs its validate tags.
func decode(r *http.Request, req any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return apperr.Wrap(apperr.CodeInvalidInput, errInvalidBody.Message, err)
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.CodeInvalidInput, errInvalidBody.Message, err)
	}
	kv := make([]string, 0, 2*len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		kv = append(kv, field, fe.Tag())
		msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errInvalidBody.WithMetadata(kv...), strings.Join(msgs, "; "))
}

func tierParam(r *http.Request, name string) (gacha.Tier, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a tier", errInvalidParam.WithMetadata("param", name), name, raw)
	}
	return gacha.Tier(v), nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errInvalidParam.WithMetadata("param", name), name, raw)
	}
	return v, nil
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", errInvalidParam.WithMetadata("param", name), name, raw)
	}
	return v, nil
}

// bearerCap decodes the capability carried in the Authorization header.
func (s *Server) bearerCap(r *http.Request) (admin.Cap, error) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return admin.Cap{}, admin.ErrMissingCap
	}
	return s.codec.Decode(strings.TrimSpace(tok))
}
