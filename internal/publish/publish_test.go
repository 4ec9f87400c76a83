package publish

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/pool-sentinel/pkg/alert"
)

type fakePublisher struct {
	failUntilAttempt int
	calls            int
}

func (f *fakePublisher) SendAlert(ctx context.Context, a alert.EnrichedPoolAlert) error {
	f.calls++
	if f.calls < f.failUntilAttempt {
		return fmt.Errorf("transient failure")
	}
	return nil
}

func TestDispatch_SucceedsAfterRetries(t *testing.T) {
	pub := &fakePublisher{failUntilAttempt: 3}
	d := NewDispatcher(pub, 5, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := d.Dispatch(ctx, alert.EnrichedPoolAlert{})
	require.NoError(t, err)
	assert.Equal(t, 3, pub.calls)
}

func TestDispatch_GivesUpAfterMaxAttempts(t *testing.T) {
	pub := &fakePublisher{failUntilAttempt: 1000}
	d := NewDispatcher(pub, 2, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := d.Dispatch(ctx, alert.EnrichedPoolAlert{})
	assert.Error(t, err)
	assert.Equal(t, 2, pub.calls)
}
