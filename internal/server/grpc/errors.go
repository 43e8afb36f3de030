package grpc

import (
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of every domain failure.
const ErrorDomain = common.ErrorDomain

var kindCodes = map[common.Kind]codes.Code{
	common.KindConflict:        codes.AlreadyExists,
	common.KindUnauthorized:    codes.Unauthenticated,
	common.KindNotFound:        codes.NotFound,
	common.KindInvalidArgument: codes.InvalidArgument,
}

// toStatus maps a service error to a gRPC status. Domain errors carry an
// ErrorInfo with their code; anything else becomes a bare Internal.
func toStatus(err error) error {
	var e *common.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, "internal error")
	}

	code, ok := kindCodes[e.Kind]
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}

	md := map[string]string{}
	if e.Field != "" {
		md["field"] = e.Field
	}
	if e.Value != "" {
		md["value"] = e.Value
	}

	st := status.New(code, message(e))
	withDetails, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   e.Code,
		Domain:   ErrorDomain,
		Metadata: md,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// message tells an expired access token apart from a bad one without
// exposing parser details.
func message(e *common.Error) string {
	if e.Code != common.CodeUnauthorized {
		return e.Message
	}
	if errors.Is(e, common.ErrTokenExpired) {
		return common.MsgExpiredToken
	}
	return common.MsgInvalidToken
}
