package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const upstreamReason = "UPSTREAM_FAILURE"

// UpstreamError builds a status for a failed call to a third party. It maps
// to 502 rather than the 503 a bare codes.Unavailable would get.
func UpstreamError(msg string) error {
	st := status.New(codes.Unavailable, msg)
	if withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: upstreamReason}); err == nil {
		st = withInfo
	}
	return st.Err()
}

func isUpstream(st *status.Status) bool {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() == upstreamReason {
			return true
		}
	}
	return false
}

// HTTPStatusFromGRPC converts an error carrying a gRPC status into an HTTP
// status, a stable code string and a client-safe message.
func HTTPStatusFromGRPC(err error) (int, string, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}

	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest, "INVALID_ARGUMENT", st.Message()
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "UNAUTHENTICATED", st.Message()
	case codes.PermissionDenied:
		return http.StatusForbidden, "PERMISSION_DENIED", st.Message()
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", st.Message()
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict, "CONFLICT", st.Message()
	case codes.Unavailable:
		if isUpstream(st) {
			return http.StatusBadGateway, "BAD_GATEWAY", st.Message()
		}
		return http.StatusServiceUnavailable, "UNAVAILABLE", st.Message()
	case codes.DeadlineExceeded:
		return http.StatusServiceUnavailable, "UNAVAILABLE", st.Message()
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, err error) {
	code, name, msg := HTTPStatusFromGRPC(err)
	WriteJSON(w, code, errorBody{Error: errorDetail{Code: name, Message: msg}})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

var ErrBadJSON = errors.New("malformed JSON body")

// DecodeJSON reads a size-limited JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return status.Errorf(codes.InvalidArgument, "%v: %v", ErrBadJSON, err)
	}
	return nil
}
