package commission

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylino/fulfillment-core/internal/domain/user"
)

type mockUserRepo struct {
	users map[string]*user.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

type mockCommissionRepo struct {
	created   []Commission
	createErr error
}

func (m *mockCommissionRepo) Create(_ context.Context, c *Commission) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *c)
	return nil
}

func (m *mockCommissionRepo) ListForUser(context.Context, string) ([]Commission, error) {
	return m.created, nil
}

func ref(id string) *string { return &id }

func chainUsers() *mockUserRepo {
	return &mockUserRepo{users: map[string]*user.User{
		"buyer":       {ID: "buyer", ReferredByID: ref("parent")},
		"parent":      {ID: "parent", ReferredByID: ref("grandparent")},
		"grandparent": {ID: "grandparent", ReferredByID: ref("ancestor")},
		"ancestor":    {ID: "ancestor"},
	}}
}

func testPayEngine() *Engine {
	e := NewEngine()
	e.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestPay(t *testing.T) {
	ctx := context.Background()
	amount := decimal.NewFromInt(1_000_000)

	t.Run("two level chain pays both levels", func(t *testing.T) {
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, chainUsers(), repo, "buyer", "order-1", amount)
		require.NoError(t, err)
		require.Len(t, created, 2)

		assert.Equal(t, 1, created[0].Level)
		assert.Equal(t, "parent", created[0].ToUserID)
		assert.Equal(t, "buyer", created[0].FromUserID)
		assert.True(t, decimal.NewFromInt(100_000).Equal(created[0].Amount), "level 1: %s", created[0].Amount)

		assert.Equal(t, 2, created[1].Level)
		assert.Equal(t, "grandparent", created[1].ToUserID)
		assert.True(t, decimal.NewFromInt(50_000).Equal(created[1].Amount), "level 2: %s", created[1].Amount)

		// The chain continues past the grandparent but the payout stops at
		// two hops.
		assert.Len(t, repo.created, 2)
	})

	t.Run("both levels computed from the original amount", func(t *testing.T) {
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, chainUsers(), repo, "buyer", "order-1", decimal.NewFromInt(410_000))
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.True(t, decimal.NewFromInt(41_000).Equal(created[0].Amount))
		assert.True(t, decimal.NewFromInt(20_500).Equal(created[1].Amount))
	})

	t.Run("single level chain pays one commission", func(t *testing.T) {
		users := &mockUserRepo{users: map[string]*user.User{
			"buyer":  {ID: "buyer", ReferredByID: ref("parent")},
			"parent": {ID: "parent"},
		}}
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, users, repo, "buyer", "order-1", amount)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, 1, created[0].Level)
	})

	t.Run("buyer without referrer pays nothing", func(t *testing.T) {
		users := &mockUserRepo{users: map[string]*user.User{
			"buyer": {ID: "buyer"},
		}}
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, users, repo, "buyer", "order-1", amount)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Empty(t, repo.created)
	})

	t.Run("dangling referrer pointer degrades to no payout", func(t *testing.T) {
		users := &mockUserRepo{users: map[string]*user.User{
			"buyer": {ID: "buyer", ReferredByID: ref("deleted")},
		}}
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, users, repo, "buyer", "order-1", amount)
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("referral cycle still pays exactly two levels", func(t *testing.T) {
		users := &mockUserRepo{users: map[string]*user.User{
			"a": {ID: "a", ReferredByID: ref("b")},
			"b": {ID: "b", ReferredByID: ref("a")},
		}}
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, users, repo, "a", "order-1", amount)
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "b", created[0].ToUserID)
		assert.Equal(t, "a", created[1].ToUserID)
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		repo := &mockCommissionRepo{createErr: errors.New("insert failed")}
		_, err := testPayEngine().Pay(ctx, chainUsers(), repo, "buyer", "order-1", amount)
		assert.Error(t, err)
	})

	t.Run("fractional amounts round to money scale", func(t *testing.T) {
		repo := &mockCommissionRepo{}
		created, err := testPayEngine().Pay(ctx, chainUsers(), repo, "buyer", "order-1",
			decimal.RequireFromString("99.99"))
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.True(t, decimal.RequireFromString("10.00").Equal(created[0].Amount))
		assert.True(t, decimal.RequireFromString("5.00").Equal(created[1].Amount))
	})
}
