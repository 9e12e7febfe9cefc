package identity_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPDP records every decision request and answers via respond.
type stubPDP struct {
	requests []identity.DecisionRequest
	respond  func(req identity.DecisionRequest) (*identity.DecisionResponse, error)
}

func (s *stubPDP) Decide(ctx context.Context, req identity.DecisionRequest) (*identity.DecisionResponse, error) {
	s.requests = append(s.requests, req)
	return s.respond(req)
}

func permitAll(req identity.DecisionRequest) (*identity.DecisionResponse, error) {
	return &identity.DecisionResponse{Decision: identity.DecisionPermit}, nil
}

func denyAll(req identity.DecisionRequest) (*identity.DecisionResponse, error) {
	return &identity.DecisionResponse{Decision: identity.DecisionDeny}, nil
}

func newAuthLogFixture(t *testing.T, respond func(identity.DecisionRequest) (*identity.DecisionResponse, error)) (*identity.AuthLogService, *stubPDP, *store.Collection[*identity.AuthenticationLog]) {
	t.Helper()

	db := setupDB(t)
	repos := identity.NewRepositoryManager(db)
	pdp := &stubPDP{respond: respond}

	cfg := identity.DefaultConfig()
	meta := identity.NewMetadataBuilder(cfg.URNs, repos.AuthLogs())
	svc := identity.NewAuthLogService(repos.AuthLogs(), pdp, meta)

	return svc, pdp, repos.AuthLogs()
}

func sampleLog(id, userID string) *identity.AuthenticationLog {
	return &identity.AuthenticationLog{
		ID:        id,
		UserID:    userID,
		Activity:  "login",
		IPAddress: "127.0.0.1",
		UserAgent: "test-agent",
		Date:      1700000000,
	}
}

func TestAuthLogCreate(t *testing.T) {
	t.Run("permit assigns ownership and stores", func(t *testing.T) {
		svc, pdp, logs := newAuthLogFixture(t, permitAll)
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1", Scope: "org-a"}
		urns := identity.DefaultConfig().URNs

		resp, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		require.True(t, resp.OK())
		require.Len(t, resp.Items, 1)

		item := resp.Items[0]
		assert.NotEmpty(t, item.ID)
		require.NotNil(t, item.Meta)
		assert.Equal(t, []identity.Attribute{
			{ID: urns.OwnerIndicatoryEntity, Value: urns.Organization},
			{ID: urns.OwnerInstance, Value: "org-a"},
			{ID: urns.OwnerIndicatoryEntity, Value: urns.User},
			{ID: urns.OwnerInstance, Value: "user-1"},
		}, item.Meta.Owner)

		// the decision saw the metadata-bearing resources
		require.Len(t, pdp.requests, 1)
		assert.Equal(t, identity.ActionCreate, pdp.requests[0].Action)
		assert.Equal(t, identity.OperationIsAllowed, pdp.requests[0].Operation)

		stored, total, err := logs.Read(ctx, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, item.Meta.Owner, stored[0].Meta.Owner)
	})

	t.Run("deny refuses without storing", func(t *testing.T) {
		svc, _, logs := newAuthLogFixture(t, denyAll)
		ctx := context.Background()

		resp, err := svc.Create(ctx, &identity.Subject{ID: "user-1"}, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		assert.False(t, resp.OK())
		assert.Equal(t, 403, resp.Status.Code)
		assert.Contains(t, resp.Status.Message, "DENY")

		_, total, err := logs.Read(ctx, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("decision point unreachable is not a deny", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, func(identity.DecisionRequest) (*identity.DecisionResponse, error) {
			return nil, goerrors.New("connection refused", goerrors.CategoryOperation)
		})

		resp, err := svc.Create(context.Background(), &identity.Subject{ID: "user-1"}, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		assert.Equal(t, 503, resp.Status.Code)
	})

	t.Run("missing subject cannot build ownership", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, permitAll)

		resp, err := svc.Create(context.Background(), nil, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status.Code)
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, permitAll)

		resp, err := svc.Create(context.Background(), &identity.Subject{ID: "user-1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status.Code)
	})
}

func TestAuthLogRead(t *testing.T) {
	t.Run("custom query args scope the read", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, func(req identity.DecisionRequest) (*identity.DecisionResponse, error) {
			resp := &identity.DecisionResponse{Decision: identity.DecisionPermit}
			if req.Operation == identity.OperationWhatIsAllowed {
				resp.CustomQueryArgs = []store.Filter{store.Eq("user_id", "user-1")}
			}
			return resp, nil
		})
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1"}

		_, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{
			sampleLog("", "user-1"),
			sampleLog("", "user-2"),
		})
		require.NoError(t, err)

		resp, err := svc.Read(ctx, subject, nil, store.Pagination{})
		require.NoError(t, err)
		require.True(t, resp.OK())
		require.Equal(t, 1, resp.Total)
		assert.Equal(t, "user-1", resp.Items[0].UserID)

		// caller filter and policy constraint combine conjunctively
		resp, err = svc.Read(ctx, subject, store.Eq("user_id", "user-2"), store.Pagination{})
		require.NoError(t, err)
		assert.Zero(t, resp.Total)
	})

	t.Run("deny refuses the read", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, denyAll)

		resp, err := svc.Read(context.Background(), &identity.Subject{ID: "user-1"}, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Status.Code)
	})
}

func TestAuthLogUpdate(t *testing.T) {
	seed := func(t *testing.T, svc *identity.AuthLogService) *identity.AuthenticationLog {
		t.Helper()
		resp, err := svc.Create(context.Background(), &identity.Subject{ID: "user-1", Scope: "org-a"},
			[]*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		require.True(t, resp.OK())
		return resp.Items[0]
	}

	t.Run("stored ownership is copied forward", func(t *testing.T) {
		svc, pdp, logs := newAuthLogFixture(t, permitAll)
		ctx := context.Background()
		created := seed(t, svc)
		originalOwner := created.Meta.Owner

		patch := sampleLog(created.ID, "user-1")
		patch.Activity = "logout"
		patch.Meta = nil

		resp, err := svc.Update(ctx, &identity.Subject{ID: "user-1", Scope: "org-a"}, []*identity.AuthenticationLog{patch})
		require.NoError(t, err)
		require.True(t, resp.OK())

		stored, _, err := logs.Read(ctx, store.Eq("id", created.ID), store.Pagination{})
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, "logout", stored[0].Activity)
		assert.Equal(t, originalOwner, stored[0].Meta.Owner)

		// only the main MODIFY decision ran, no ownership change re-check
		assert.Len(t, pdp.requests, 2)
	})

	t.Run("ownership change needs its own permit", func(t *testing.T) {
		denyNarrow := false
		svc, pdp, logs := newAuthLogFixture(t, func(req identity.DecisionRequest) (*identity.DecisionResponse, error) {
			if denyNarrow && req.Action == identity.ActionModify {
				return &identity.DecisionResponse{Decision: identity.DecisionDeny}, nil
			}
			return &identity.DecisionResponse{Decision: identity.DecisionPermit}, nil
		})
		ctx := context.Background()
		created := seed(t, svc)
		urns := identity.DefaultConfig().URNs

		newOwner := []identity.Attribute{
			{ID: urns.OwnerIndicatoryEntity, Value: urns.User},
			{ID: urns.OwnerInstance, Value: "user-2"},
		}

		patch := sampleLog(created.ID, "user-1")
		patch.Meta = &identity.Meta{Owner: newOwner}

		denyNarrow = true
		resp, err := svc.Update(ctx, &identity.Subject{ID: "user-1", Scope: "org-a"}, []*identity.AuthenticationLog{patch})
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Status.Code)

		stored, _, err := logs.Read(ctx, store.Eq("id", created.ID), store.Pagination{})
		require.NoError(t, err)
		assert.NotEqual(t, newOwner, stored[0].Meta.Owner)

		denyNarrow = false
		pdp.requests = nil
		resp, err = svc.Update(ctx, &identity.Subject{ID: "user-1", Scope: "org-a"}, []*identity.AuthenticationLog{patch})
		require.NoError(t, err)
		require.True(t, resp.OK())

		// narrow re-check plus the batch decision
		assert.Len(t, pdp.requests, 2)

		stored, _, err = logs.Read(ctx, store.Eq("id", created.ID), store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, newOwner, stored[0].Meta.Owner)
	})
}

func TestAuthLogUpsert(t *testing.T) {
	t.Run("splits creates and updates", func(t *testing.T) {
		svc, pdp, logs := newAuthLogFixture(t, permitAll)
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1"}

		created, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		require.True(t, created.OK())

		existing := sampleLog(created.Items[0].ID, "user-1")
		existing.Activity = "logout"
		fresh := sampleLog("", "user-2")

		pdp.requests = nil
		resp, err := svc.Upsert(ctx, subject, []*identity.AuthenticationLog{existing, fresh})
		require.NoError(t, err)
		require.True(t, resp.OK())

		// one CREATE decision for the new row, one MODIFY for the existing one
		actions := []identity.AuthZAction{pdp.requests[0].Action, pdp.requests[1].Action}
		assert.Contains(t, actions, identity.ActionCreate)
		assert.Contains(t, actions, identity.ActionModify)

		_, total, err := logs.Read(ctx, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)

		stored, _, err := logs.Read(ctx, store.Eq("id", created.Items[0].ID), store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, "logout", stored[0].Activity)
	})

	t.Run("ownership change needs its own permit", func(t *testing.T) {
		denyNarrow := false
		svc, pdp, logs := newAuthLogFixture(t, func(req identity.DecisionRequest) (*identity.DecisionResponse, error) {
			if denyNarrow && req.Action == identity.ActionModify {
				return &identity.DecisionResponse{Decision: identity.DecisionDeny}, nil
			}
			return &identity.DecisionResponse{Decision: identity.DecisionPermit}, nil
		})
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1", Scope: "org-a"}

		created, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{sampleLog("", "user-1")})
		require.NoError(t, err)
		require.True(t, created.OK())
		originalOwner := created.Items[0].Meta.Owner
		urns := identity.DefaultConfig().URNs

		newOwner := []identity.Attribute{
			{ID: urns.OwnerIndicatoryEntity, Value: urns.User},
			{ID: urns.OwnerInstance, Value: "user-2"},
		}

		patch := sampleLog(created.Items[0].ID, "user-1")
		patch.Meta = &identity.Meta{Owner: newOwner}

		denyNarrow = true
		resp, err := svc.Upsert(ctx, subject, []*identity.AuthenticationLog{patch})
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Status.Code)

		stored, _, err := logs.Read(ctx, store.Eq("id", created.Items[0].ID), store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, originalOwner, stored[0].Meta.Owner)

		denyNarrow = false
		pdp.requests = nil
		resp, err = svc.Upsert(ctx, subject, []*identity.AuthenticationLog{patch})
		require.NoError(t, err)
		require.True(t, resp.OK())

		// narrow re-check plus the batch MODIFY decision
		assert.Len(t, pdp.requests, 2)

		stored, _, err = logs.Read(ctx, store.Eq("id", created.Items[0].ID), store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, newOwner, stored[0].Meta.Owner)
	})
}

func TestAuthLogDelete(t *testing.T) {
	t.Run("by ids", func(t *testing.T) {
		svc, _, logs := newAuthLogFixture(t, permitAll)
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1"}

		created, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{
			sampleLog("", "user-1"),
			sampleLog("", "user-1"),
		})
		require.NoError(t, err)

		resp, err := svc.Delete(ctx, subject, []string{created.Items[0].ID}, false)
		require.NoError(t, err)
		require.True(t, resp.OK())

		_, total, err := logs.Read(ctx, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("whole collection", func(t *testing.T) {
		svc, _, logs := newAuthLogFixture(t, permitAll)
		ctx := context.Background()
		subject := &identity.Subject{ID: "user-1"}

		_, err := svc.Create(ctx, subject, []*identity.AuthenticationLog{
			sampleLog("", "user-1"),
			sampleLog("", "user-2"),
		})
		require.NoError(t, err)

		resp, err := svc.Delete(ctx, subject, nil, true)
		require.NoError(t, err)
		require.True(t, resp.OK())

		_, total, err := logs.Read(ctx, nil, store.Pagination{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("nothing addressed", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, permitAll)

		resp, err := svc.Delete(context.Background(), &identity.Subject{ID: "user-1"}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Status.Code)
	})

	t.Run("deny refuses delete", func(t *testing.T) {
		svc, _, _ := newAuthLogFixture(t, denyAll)

		resp, err := svc.Delete(context.Background(), &identity.Subject{ID: "user-1"}, []string{"some-id"}, false)
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Status.Code)
	})
}
