package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/matheus3301/inbox/internal/account"
	"github.com/matheus3301/inbox/internal/chat"
	"github.com/matheus3301/inbox/internal/remote"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus converts a domain error into a gRPC status error.
func toStatus(op string, err error) error {
	return grpcstatus.Errorf(codeOf(err), "%s: %v", op, err)
}

func codeOf(err error) codes.Code {
	var apiErr *remote.APIError
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, chat.ErrSignedOut),
		errors.Is(err, account.ErrNotSignedIn),
		errors.Is(err, remote.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, account.ErrSignedIn):
		return codes.AlreadyExists
	case errors.Is(err, chat.ErrNoConversation), errors.Is(err, chat.ErrPending):
		return codes.FailedPrecondition
	case errors.Is(err, chat.ErrNoSuchParticipant):
		return codes.InvalidArgument
	case errors.Is(err, chat.ErrStale):
		return codes.Aborted
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusBadRequest:
			return codes.InvalidArgument
		case apiErr.Status == http.StatusForbidden:
			return codes.PermissionDenied
		case apiErr.Status == http.StatusNotFound:
			return codes.NotFound
		case apiErr.Status == http.StatusConflict:
			return codes.AlreadyExists
		case apiErr.Status >= 500:
			return codes.Unavailable
		}
		return codes.Unknown
	case errors.As(err, &urlErr):
		return codes.Unavailable
	}
	return codes.Internal
}
