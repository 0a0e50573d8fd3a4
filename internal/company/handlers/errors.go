package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
)

const errorDomain = "founderhub"

// mapServiceError translates a service error into a gRPC status; the gateway
// turns the code into the HTTP status of the response.
func (h *CompanyHandler) mapServiceError(err error) error {
	var verr *e.ValidationError
	switch {
	case errors.As(err, &verr):
		return validationStatus(verr)
	case errors.Is(err, e.ErrSessionRevoked):
		return withDetails(codes.Unauthenticated, err.Error(), &errdetails.ErrorInfo{
			Reason: "SESSION_REVOKED",
			Domain: errorDomain,
		})
	case errors.Is(err, e.ErrUnauthenticated), errors.Is(err, e.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, e.ErrUnauthenticated.Error())
	case errors.Is(err, e.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, e.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, e.ErrDuplicate):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, e.ErrInvalidTransition):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, e.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, e.ErrTimeout.Error())
	case errors.Is(err, e.ErrInvalidInput),
		errors.Is(err, e.ErrUnsupportedProvider),
		errors.Is(err, e.ErrStateMismatch),
		errors.Is(err, e.ErrStateExpired):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrProviderAPI):
		return status.Error(codes.Unavailable, err.Error())
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}
}

func validationStatus(verr *e.ValidationError) error {
	br := &errdetails.BadRequest{}
	for _, f := range verr.Fields {
		br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       f.Field,
			Description: fmt.Sprintf("%s: %s", f.Label, f.Message),
		})
	}
	return withDetails(codes.InvalidArgument, verr.Error(), br)
}

func withDetails(code codes.Code, msg string, details ...protoadapt.MessageV1) error {
	st, err := status.New(code, msg).WithDetails(details...)
	if err != nil {
		return status.Error(code, msg)
	}
	return st.Err()
}

// writeError renders err through the gateway's error handler so every
// failure has the same JSON shape.
func (h *CompanyHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	runtime.HTTPError(r.Context(), h.mux, outbound, w, r, h.mapServiceError(err))
}
