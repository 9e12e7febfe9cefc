package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/store"
)

// AuthZAction is the action a subject wants to perform on a resource.
type AuthZAction string

const (
	ActionCreate AuthZAction = "CREATE"
	ActionRead   AuthZAction = "READ"
	ActionModify AuthZAction = "MODIFY"
	ActionDelete AuthZAction = "DELETE"
)

// AccessOperation selects the decision mode: a yes/no question about one
// concrete action, or a query for everything the subject may do.
type AccessOperation string

const (
	OperationIsAllowed     AccessOperation = "isAllowed"
	OperationWhatIsAllowed AccessOperation = "whatIsAllowed"
)

// Decision is the policy decision point verdict.
type Decision string

const (
	DecisionPermit Decision = "PERMIT"
	DecisionDeny   Decision = "DENY"
)

// Subject identifies who is asking. Scope, when present, names the
// organization the subject acts for.
type Subject struct {
	ID    string `json:"id"`
	Scope string `json:"scope,omitempty"`
}

// Target names the resources a decision request is about: either concrete
// ids or a whole collection.
type Target struct {
	Resource   string   `json:"resource"`
	IDs        []string `json:"ids,omitempty"`
	Collection string   `json:"collection,omitempty"`
}

// OperationStatus is the structured outcome attached to refusals so batch
// callers can report per-item results without aborting.
type OperationStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DecisionRequest is what the gate sends to the decision point.
type DecisionRequest struct {
	Subject   *Subject
	Action    AuthZAction
	Operation AccessOperation
	Targets   []Target
	// Resources carries the (metadata-bearing) records under decision so
	// policies can inspect ownership.
	Resources any
}

// DecisionResponse is the decision point's answer. CustomQueryArgs, when
// present on a whatIsAllowed response, are spliced into the read filter.
type DecisionResponse struct {
	Decision        Decision
	OperationStatus OperationStatus
	CustomQueryArgs []store.Filter
}

// AccessController is the policy decision point boundary.
type AccessController interface {
	Decide(ctx context.Context, req DecisionRequest) (*DecisionResponse, error)
}

// AccessControllerFunc adapts a function to AccessController.
type AccessControllerFunc func(ctx context.Context, req DecisionRequest) (*DecisionResponse, error)

func (f AccessControllerFunc) Decide(ctx context.Context, req DecisionRequest) (*DecisionResponse, error) {
	return f(ctx, req)
}

func returnOperationStatus(code int, message string) OperationStatus {
	return OperationStatus{Code: code, Message: message}
}

// statusFromError converts a decision transport failure into an operation
// status, so callers can tell "unreachable" apart from an explicit DENY.
func statusFromError(err error) OperationStatus {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		switch rich.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return returnOperationStatus(400, rich.Message)
		case goerrors.CategoryAuth:
			return returnOperationStatus(401, rich.Message)
		case goerrors.CategoryAuthz:
			return returnOperationStatus(403, rich.Message)
		case goerrors.CategoryNotFound:
			return returnOperationStatus(404, rich.Message)
		case goerrors.CategoryConflict:
			return returnOperationStatus(409, rich.Message)
		}
	}
	return returnOperationStatus(503, err.Error())
}

// checkAccessRequest asks the decision point and folds transport errors into
// a structured non-PERMIT response.
func checkAccessRequest(ctx context.Context, authZ AccessController, req DecisionRequest) *DecisionResponse {
	resp, err := authZ.Decide(ctx, req)
	if err != nil {
		return &DecisionResponse{
			Decision:        "",
			OperationStatus: statusFromError(err),
		}
	}
	if resp == nil {
		return &DecisionResponse{
			OperationStatus: returnOperationStatus(503, "empty decision response"),
		}
	}
	return resp
}
