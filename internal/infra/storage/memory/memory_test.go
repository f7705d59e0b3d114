package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/debugctl/internal/core/domain"
	"github.com/vietddude/debugctl/internal/infra/storage"
)

func TestDebuggeeRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewDebuggeeRepo(NewMemoryStorage())

	_, err := repo.Get(ctx, "d1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	d := &domain.Debuggee{Id: "d1", Project: "p", Labels: map[string]string{"env": "prod"}}
	require.NoError(t, repo.Save(ctx, d))
	d.Labels["env"] = "mutated"

	got, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Labels["env"])

	require.NoError(t, repo.Save(ctx, &domain.Debuggee{Id: "d0"}))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "d0", all[0].Id)
}

func TestBreakpointRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewBreakpointRepo(NewMemoryStorage())

	for _, id := range []string{"b3", "b1", "b2"} {
		require.NoError(t, repo.Create(ctx, "d1", &domain.Breakpoint{Id: id}))
	}
	err := repo.Create(ctx, "d1", &domain.Breakpoint{Id: "b1"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	active, err := repo.ListActive(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b1", "b2"}, ids(active))

	applied, err := repo.Update(ctx, "d1", &domain.Breakpoint{Id: "b1", Condition: "x > 1"})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.Update(ctx, "d1", &domain.Breakpoint{Id: "b1", IsFinalState: true})
	require.NoError(t, err)
	assert.True(t, applied, "first final update wins")

	applied, err = repo.Update(ctx, "d1", &domain.Breakpoint{Id: "b1", IsFinalState: true, UserEmail: "late"})
	require.NoError(t, err)
	assert.False(t, applied, "later results are discarded")

	got, err := repo.Get(ctx, "d1", "b1")
	require.NoError(t, err)
	assert.True(t, got.IsFinalState)
	assert.Empty(t, got.UserEmail)

	active, err = repo.ListActive(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b2"}, ids(active))

	_, err = repo.Update(ctx, "d1", &domain.Breakpoint{Id: "nope"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.Get(ctx, "d2", "b1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func ids(bps []*domain.Breakpoint) []string {
	out := make([]string, 0, len(bps))
	for _, bp := range bps {
		out = append(out, bp.Id)
	}
	return out
}
