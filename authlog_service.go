package identity

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/store"
	"github.com/google/uuid"
)

// AuthLogResource is the resource name presented to the decision point.
const AuthLogResource = "authentication_log"

// AuthLogResponse is the envelope for gated auth log operations. Policy
// refusals land in Status with a nil error, so batch callers can always
// inspect the outcome; returned errors are infrastructure failures only.
type AuthLogResponse struct {
	Items  []*AuthenticationLog
	Total  int
	Status OperationStatus
}

// OK reports whether the operation was permitted and applied.
func (r *AuthLogResponse) OK() bool {
	return r.Status.Code == 200
}

// AuthLogService guards the authentication log collection behind an access
// decision point. Every mutation gets its ownership metadata computed before
// the decision, and ownership never changes silently on update.
type AuthLogService struct {
	logs     *store.Collection[*AuthenticationLog]
	authZ    AccessController
	meta     *MetadataBuilder
	logger   Logger
	provider LoggerProvider
}

// NewAuthLogService wires the gated service.
func NewAuthLogService(logs *store.Collection[*AuthenticationLog], authZ AccessController, meta *MetadataBuilder) *AuthLogService {
	provider, logger := ResolveLogger("identity.authlog_service", nil, nil)
	return &AuthLogService{
		logs:     logs,
		authZ:    authZ,
		meta:     meta,
		logger:   logger,
		provider: provider,
	}
}

// WithLogger overrides the scoped logger.
func (s *AuthLogService) WithLogger(l Logger) *AuthLogService {
	s.provider, s.logger = ResolveLogger("identity.authlog_service", s.provider, l)
	return s
}

// Create stores the batch after metadata assignment and a CREATE decision.
func (s *AuthLogService) Create(ctx context.Context, subject *Subject, items []*AuthenticationLog) (*AuthLogResponse, error) {
	if len(items) == 0 {
		return &AuthLogResponse{Status: returnOperationStatus(400, "no authentication log was provided")}, nil
	}

	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
	}

	if err := s.meta.Build(ctx, items, ActionCreate, subject); err != nil {
		return &AuthLogResponse{Status: statusFromError(err)}, nil
	}

	decision := s.decide(ctx, subject, ActionCreate, OperationIsAllowed, items)
	if decision.Decision != DecisionPermit {
		return s.refused(subject, ActionCreate, decision), nil
	}

	if err := s.logs.Create(ctx, items); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create authentication logs")
	}

	return &AuthLogResponse{
		Items:  items,
		Total:  len(items),
		Status: returnOperationStatus(200, "success"),
	}, nil
}

// Read asks whatIsAllowed and splices the decision point's custom query
// constraints into the caller's filter, so the subject only sees rows the
// policy scopes them to.
func (s *AuthLogService) Read(ctx context.Context, subject *Subject, f store.Filter, p store.Pagination) (*AuthLogResponse, error) {
	decision := checkAccessRequest(ctx, s.authZ, DecisionRequest{
		Subject:   subject,
		Action:    ActionRead,
		Operation: OperationWhatIsAllowed,
		Targets:   []Target{{Resource: AuthLogResource, Collection: AuthLogResource}},
	})
	if decision.Decision != DecisionPermit {
		return s.refused(subject, ActionRead, decision), nil
	}

	if len(decision.CustomQueryArgs) > 0 {
		scoped := append([]store.Filter{f}, decision.CustomQueryArgs...)
		f = store.And(scoped...)
	}

	items, total, err := s.logs.Read(ctx, f, p)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not read authentication logs")
	}

	return &AuthLogResponse{
		Items:  items,
		Total:  total,
		Status: returnOperationStatus(200, "success"),
	}, nil
}

// Update rewrites existing rows. Stored ownership is copied forward; an
// explicit ownership change on an item triggers a second, item-narrow
// decision and only sticks when that decision permits.
func (s *AuthLogService) Update(ctx context.Context, subject *Subject, items []*AuthenticationLog) (*AuthLogResponse, error) {
	if len(items) == 0 {
		return &AuthLogResponse{Status: returnOperationStatus(400, "no authentication log was provided")}, nil
	}

	requested := requestedOwners(items)

	if err := s.meta.Build(ctx, items, ActionModify, subject); err != nil {
		return &AuthLogResponse{Status: statusFromError(err)}, nil
	}

	if refused := s.gateOwnershipChanges(ctx, subject, items, requested); refused != nil {
		return refused, nil
	}

	decision := s.decide(ctx, subject, ActionModify, OperationIsAllowed, items)
	if decision.Decision != DecisionPermit {
		return s.refused(subject, ActionModify, decision), nil
	}

	if err := s.logs.Update(ctx, items); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update authentication logs")
	}

	return &AuthLogResponse{
		Items:  items,
		Total:  len(items),
		Status: returnOperationStatus(200, "success"),
	}, nil
}

// Upsert splits the batch into creates and updates by stored id and gates
// each half with its own decision. Ownership changes on the update half are
// gated item by item, same as Update.
func (s *AuthLogService) Upsert(ctx context.Context, subject *Subject, items []*AuthenticationLog) (*AuthLogResponse, error) {
	if len(items) == 0 {
		return &AuthLogResponse{Status: returnOperationStatus(400, "no authentication log was provided")}, nil
	}

	var creates, updates []*AuthenticationLog
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
			creates = append(creates, item)
			continue
		}
		_, total, err := s.logs.Read(ctx, store.Eq("id", item.ID), store.Pagination{Limit: 1})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not resolve authentication log")
		}
		if total == 0 {
			creates = append(creates, item)
		} else {
			updates = append(updates, item)
		}
	}

	if len(creates) > 0 {
		if err := s.meta.Build(ctx, creates, ActionCreate, subject); err != nil {
			return &AuthLogResponse{Status: statusFromError(err)}, nil
		}
		decision := s.decide(ctx, subject, ActionCreate, OperationIsAllowed, creates)
		if decision.Decision != DecisionPermit {
			return s.refused(subject, ActionCreate, decision), nil
		}
	}

	if len(updates) > 0 {
		requested := requestedOwners(updates)
		if err := s.meta.Build(ctx, updates, ActionModify, subject); err != nil {
			return &AuthLogResponse{Status: statusFromError(err)}, nil
		}
		if refused := s.gateOwnershipChanges(ctx, subject, updates, requested); refused != nil {
			return refused, nil
		}
		decision := s.decide(ctx, subject, ActionModify, OperationIsAllowed, updates)
		if decision.Decision != DecisionPermit {
			return s.refused(subject, ActionModify, decision), nil
		}
	}

	if err := s.logs.Upsert(ctx, items); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not upsert authentication logs")
	}

	return &AuthLogResponse{
		Items:  items,
		Total:  len(items),
		Status: returnOperationStatus(200, "success"),
	}, nil
}

// Delete removes the identified rows, or the whole collection when ids is
// empty and collection is true.
func (s *AuthLogService) Delete(ctx context.Context, subject *Subject, ids []string, collection bool) (*AuthLogResponse, error) {
	if len(ids) == 0 && !collection {
		return &AuthLogResponse{Status: returnOperationStatus(400, "no authentication log id was provided")}, nil
	}

	if collection && len(ids) == 0 {
		decision := checkAccessRequest(ctx, s.authZ, DecisionRequest{
			Subject:   subject,
			Action:    ActionDelete,
			Operation: OperationIsAllowed,
			Targets:   []Target{{Resource: AuthLogResource, Collection: AuthLogResource}},
		})
		if decision.Decision != DecisionPermit {
			return s.refused(subject, ActionDelete, decision), nil
		}

		if err := s.logs.DeleteAll(ctx); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not drop authentication logs")
		}
		return &AuthLogResponse{Status: returnOperationStatus(200, "success")}, nil
	}

	resources := make([]*AuthenticationLog, 0, len(ids))
	for _, id := range ids {
		resources = append(resources, &AuthenticationLog{ID: id})
	}

	// Metadata is restored from storage so the policy can inspect ownership
	// of the rows about to disappear.
	if err := s.meta.Build(ctx, resources, ActionDelete, subject); err != nil {
		return &AuthLogResponse{Status: statusFromError(err)}, nil
	}

	decision := s.decide(ctx, subject, ActionDelete, OperationIsAllowed, resources)
	if decision.Decision != DecisionPermit {
		return s.refused(subject, ActionDelete, decision), nil
	}

	if err := s.logs.Delete(ctx, ids); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not delete authentication logs")
	}

	return &AuthLogResponse{Status: returnOperationStatus(200, "success")}, nil
}

// requestedOwners snapshots the owner attributes callers submitted before the
// metadata builder copies the stored owners forward.
func requestedOwners(items []*AuthenticationLog) [][]Attribute {
	requested := make([][]Attribute, len(items))
	for i, item := range items {
		if item.Meta != nil {
			requested[i] = item.Meta.Owner
		}
	}
	return requested
}

// gateOwnershipChanges re-checks every item whose submitted owner differs from
// the stored one with an item-narrow decision. The change only sticks on
// permit; the first refusal aborts the batch. Returns nil when all clear.
func (s *AuthLogService) gateOwnershipChanges(ctx context.Context, subject *Subject, items []*AuthenticationLog, requested [][]Attribute) *AuthLogResponse {
	for i, item := range items {
		want := requested[i]
		if len(want) == 0 || attributesEqual(want, item.Meta.Owner) {
			continue
		}

		candidate := *item
		candidate.Meta = &Meta{Owner: want}

		narrow := s.decide(ctx, subject, ActionModify, OperationIsAllowed, []*AuthenticationLog{&candidate})
		if narrow.Decision != DecisionPermit {
			return s.refused(subject, ActionModify, narrow)
		}
		item.Meta.Owner = want
	}
	return nil
}

func (s *AuthLogService) decide(ctx context.Context, subject *Subject, action AuthZAction, op AccessOperation, resources []*AuthenticationLog) *DecisionResponse {
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}

	return checkAccessRequest(ctx, s.authZ, DecisionRequest{
		Subject:   subject,
		Action:    action,
		Operation: op,
		Targets:   []Target{{Resource: AuthLogResource, IDs: ids}},
		Resources: resources,
	})
}

func (s *AuthLogService) refused(subject *Subject, action AuthZAction, decision *DecisionResponse) *AuthLogResponse {
	status := decision.OperationStatus
	if status.Code == 0 {
		subjectID := ""
		if subject != nil {
			subjectID = subject.ID
		}
		status = returnOperationStatus(403, fmt.Sprintf(
			"Access not allowed for request with subject:%s, resource:%s, action:%s; the response was %s",
			subjectID, AuthLogResource, action, decision.Decision))
	}

	s.logger.Debug("authentication log operation refused",
		"action", string(action), "code", status.Code, "message", status.Message)

	return &AuthLogResponse{Status: status}
}
