package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreListsOneClaimByTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	t0 := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	// The decision's flush lands before the creation's, and two events share t0+1s.
	require.NoError(t, store.Append(ctx, Event{Subject: "clm_1", Action: string(ActionClaimAccepted), Timestamp: t0.Add(time.Second)}))
	require.NoError(t, store.Append(ctx, Event{Subject: "clm_2", Action: string(ActionClaimCreated), Timestamp: t0}))
	require.NoError(t, store.Append(ctx, Event{Subject: "clm_1", Action: string(ActionClaimCreated), Timestamp: t0}))
	require.NoError(t, store.Append(ctx, Event{Subject: "clm_1", Action: "claim_viewed", Timestamp: t0.Add(time.Second)}))

	events, err := store.ListBySubject(ctx, "clm_1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(ActionClaimCreated), events[0].Action)
	assert.Equal(t, string(ActionClaimAccepted), events[1].Action)
	assert.Equal(t, "claim_viewed", events[2].Action)

	none, err := store.ListBySubject(ctx, "clm_404")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStoreListIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Append(ctx, Event{Subject: "clm_1", Actor: "did:ethr:0xissuer"}))

	events, err := store.ListBySubject(ctx, "clm_1")
	require.NoError(t, err)
	events[0].Actor = "tampered"

	again, err := store.ListBySubject(ctx, "clm_1")
	require.NoError(t, err)
	assert.Equal(t, "did:ethr:0xissuer", again[0].Actor)
}
