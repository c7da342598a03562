package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/unictl/internal/unisphere"
)

var (
	// ErrUnexpectedStatus is returned when an existence check answers
	// something other than 200 or 404.
	ErrUnexpectedStatus = errors.New("unexpected resource state")

	// ErrMutationFailed is returned when a create or delete is not accepted.
	ErrMutationFailed = errors.New("mutation failed")
)

// Action represents what reconciliation action needs to be taken.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionDelete
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionCreate:
		return "create"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// DetermineAction maps desired state and observed existence to an action.
// There is no update in place: an existing resource is left untouched.
func DetermineAction(desired State, exists bool) Action {
	switch {
	case desired == StatePresent && !exists:
		return ActionCreate
	case desired == StateAbsent && exists:
		return ActionDelete
	}
	return ActionNone
}

// Exists interprets an existence check. 200 means found, 404 means missing,
// anything else is ErrUnexpectedStatus carrying the status and body.
func Exists(op string, resp *unisphere.Response) (bool, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrUnexpectedStatus, unisphere.NewAPIError(op, resp))
}

// CheckCreated accepts any 2xx answer to a create call.
func CheckCreated(op string, resp *unisphere.Response) error {
	if !resp.OK() {
		return fmt.Errorf("%w: %w", ErrMutationFailed, unisphere.NewAPIError(op, resp))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("Create accepted with unusual status")
	}
	return nil
}

// WaitFunc polls until a deleted resource is gone.
type WaitFunc func(ctx context.Context) (*unisphere.Response, error)

// ConfirmDeleted interprets a delete answer. 404 means the resource is
// already gone. An accepted delete (2xx) is confirmed by polling until the
// API reports 404. ErrDeleteTimeout is passed through unwrapped.
func ConfirmDeleted(ctx context.Context, op string, resp *unisphere.Response, wait WaitFunc) error {
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %w", ErrMutationFailed, unisphere.NewAPIError(op, resp))
	}

	final, err := wait(ctx)
	if err != nil {
		if errors.Is(err, unisphere.ErrDeleteTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	if final.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrMutationFailed, unisphere.NewAPIError(op, final))
	}
	return nil
}
