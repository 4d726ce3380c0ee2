package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/taskforge/internal/model"
)

func newRecord(id string) model.Record {
	return model.NewRecord(id, model.TaskRequest{Task: "t", Round: 1, Nonce: "n"}, time.Now().UTC())
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(newRecord("id-1")))

	got, ok := r.Get("id-1")
	require.True(t, ok)
	assert.Equal(t, model.StatusProcessing, got.Status)

	require.NoError(t, r.Transition("id-1", model.StatusGeneratingCode))
	res := model.PublicationResult{RepoURL: "https://github.com/o/r", CommitSHA: "c", PagesURL: "https://o.github.io/r/"}
	require.NoError(t, r.Complete("id-1", res))

	got, _ = r.Get("id-1")
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, res, *got.Result)

	err := r.Fail("id-1", model.ErrorInfo{Message: "late"})
	assert.ErrorIs(t, err, ErrTerminal)

	got, _ = r.Get("id-1")
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestRegistry_Fail(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(newRecord("id-2")))

	require.NoError(t, r.Fail("id-2", model.ErrorInfo{FailedStep: "startup", Message: "boom"}))
	got, _ := r.Get("id-2")
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, "startup", got.ErrorInfo.FailedStep)
}

func TestRegistry_RejectsInvalidTransition(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(newRecord("id-3")))
	assert.Error(t, r.Complete("id-3", model.PublicationResult{}))

	got, _ := r.Get("id-3")
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestRegistry_DuplicateAndUnknown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(newRecord("dup")))
	assert.Error(t, r.Create(newRecord("dup")))

	err := r.Transition("missing", model.StatusGeneratingCode)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentWriters(t *testing.T) {
	r := NewRegistry()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", i)
			assert.NoError(t, r.Create(newRecord(id)))
			assert.NoError(t, r.Transition(id, model.StatusGeneratingCode))
			assert.NoError(t, r.Complete(id, model.PublicationResult{CommitSHA: id}))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, n, r.Len())
	for i := 0; i < n; i++ {
		got, ok := r.Get(fmt.Sprintf("id-%d", i))
		require.True(t, ok)
		assert.Equal(t, model.StatusCompleted, got.Status)
	}
}
