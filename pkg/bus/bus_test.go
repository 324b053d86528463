package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/types"
)

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	b := New()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
			order = append(order, name)
			return nil
		})
	}

	b.Publish(context.Background(), &types.Event{Type: types.EventIssueCreated})
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_DeliversOnlyMatchingType(t *testing.T) {
	b := New()

	var got []types.EventType
	b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
		got = append(got, e.Type)
		return nil
	})

	b.Publish(context.Background(), &types.Event{Type: types.EventIssueUpdated})
	b.Publish(context.Background(), &types.Event{Type: types.EventIssueCreated})

	require.Len(t, got, 1)
	assert.Equal(t, types.EventIssueCreated, got[0])
}

func TestBus_StampsIDAndTimestamp(t *testing.T) {
	b := New()

	var seen *types.Event
	b.Subscribe(types.EventMemoThreshold, func(ctx context.Context, e *types.Event) error {
		seen = e
		return nil
	})

	b.Publish(context.Background(), &types.Event{Type: types.EventMemoThreshold})
	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.ID)
	assert.False(t, seen.Timestamp.IsZero())
}

func TestBus_HandlerFailureDoesNotBlockSiblings(t *testing.T) {
	b := New()

	var reached bool
	b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
		return errors.New("boom")
	})
	b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
		panic("worse")
	})
	b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
		reached = true
		return nil
	})

	b.Publish(context.Background(), &types.Event{Type: types.EventIssueCreated})
	assert.True(t, reached)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()

	calls := 0
	id := b.Subscribe(types.EventIssueCreated, func(ctx context.Context, e *types.Event) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, b.SubscriberCount(types.EventIssueCreated))

	b.Publish(context.Background(), &types.Event{Type: types.EventIssueCreated})
	b.Unsubscribe(types.EventIssueCreated, id)
	b.Publish(context.Background(), &types.Event{Type: types.EventIssueCreated})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.SubscriberCount(types.EventIssueCreated))

	// Unknown ids are ignored.
	b.Unsubscribe(types.EventIssueCreated, "missing")
}
