package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/store"
)

// MetadataBuilder computes and refreshes the owner attribute list attached to
// owner-bearing resources.
//
// CREATE assigns ownership from the subject (organization scope when present,
// plus the subject id). MODIFY and DELETE copy the stored ownership forward
// untouched; ownership changes only pass through the gate's narrow re-check.
type MetadataBuilder struct {
	urns     URNConfig
	authLogs *store.Collection[*AuthenticationLog]
}

// NewMetadataBuilder wires a builder against the auth log collection.
func NewMetadataBuilder(urns URNConfig, authLogs *store.Collection[*AuthenticationLog]) *MetadataBuilder {
	return &MetadataBuilder{urns: urns, authLogs: authLogs}
}

// Build fills meta.owner for every resource in the batch according to action.
func (b *MetadataBuilder) Build(ctx context.Context, resources []*AuthenticationLog, action AuthZAction, subject *Subject) error {
	var orgOwner []Attribute
	if subject != nil && subject.Scope != "" && (action == ActionCreate || action == ActionModify) {
		orgOwner = []Attribute{
			{ID: b.urns.OwnerIndicatoryEntity, Value: b.urns.Organization},
			{ID: b.urns.OwnerInstance, Value: subject.Scope},
		}
	}

	for _, resource := range resources {
		meta := resource.EnsureMeta()

		switch action {
		case ActionModify, ActionDelete:
			stored, _, err := b.authLogs.Read(ctx, store.Eq("id", resource.ID), store.Pagination{Limit: 1})
			if err != nil {
				return err
			}
			if len(stored) == 1 && stored[0].Meta != nil {
				meta.Owner = stored[0].Meta.Owner
				continue
			}
			if len(meta.Owner) == 0 {
				owner, err := b.subjectOwner(orgOwner, subject)
				if err != nil {
					return err
				}
				meta.Owner = owner
			}
		case ActionCreate:
			if len(meta.Owner) == 0 {
				owner, err := b.subjectOwner(orgOwner, subject)
				if err != nil {
					return err
				}
				meta.Owner = owner
			}
		}
	}

	return nil
}

func (b *MetadataBuilder) subjectOwner(orgOwner []Attribute, subject *Subject) ([]Attribute, error) {
	if subject == nil || subject.ID == "" {
		return nil, goerrors.New("cannot build ownership without a subject", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	owner := make([]Attribute, 0, len(orgOwner)+2)
	owner = append(owner, orgOwner...)
	owner = append(owner,
		Attribute{ID: b.urns.OwnerIndicatoryEntity, Value: b.urns.User},
		Attribute{ID: b.urns.OwnerInstance, Value: subject.ID},
	)
	return owner, nil
}
