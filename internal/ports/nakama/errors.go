package nakama

import (
	"bataille/internal/app"

	"github.com/heroiclabs/nakama-common/runtime"
)

// gRPC status codes used by runtime.NewError.
const (
	codeInvalidArgument    = 3
	codeDeadlineExceeded   = 4
	codeNotFound           = 5
	codePermissionDenied   = 7
	codeFailedPrecondition = 9
	codeInternal           = 13
	codeUnauthenticated    = 16
)

func grpcCode(kind app.ErrorKind) int {
	switch kind {
	case app.KindUnauthenticated:
		return codeUnauthenticated
	case app.KindInvalidArgument:
		return codeInvalidArgument
	case app.KindNotFound:
		return codeNotFound
	case app.KindPermissionDenied:
		return codePermissionDenied
	case app.KindFailedPrecondition:
		return codeFailedPrecondition
	case app.KindDeadlineExceeded:
		return codeDeadlineExceeded
	default:
		return codeInternal
	}
}

// toRuntimeError converts a service error into the error Nakama returns to the client.
func toRuntimeError(err error) *runtime.Error {
	kind := app.KindOf(err)
	msg := err.Error()
	if kind == app.KindInternal {
		msg = "internal error"
	}
	return runtime.NewError(msg, grpcCode(kind))
}
