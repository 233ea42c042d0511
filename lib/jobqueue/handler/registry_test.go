package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	h := HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) {
		return job.Result{Summary: "ok"}, nil
	})

	require.NoError(t, r.Register("send_email", h))

	got, ok := r.Lookup("send_email")
	require.True(t, ok)
	result, err := got.Handle(context.Background(), &job.Job{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Summary)
}

func TestRegisterDuplicateJobTypeFails(t *testing.T) {
	r := NewRegistry()
	h := HandlerFunc(func(ctx context.Context, j *job.Job) (job.Result, error) { return job.Result{}, nil })

	require.NoError(t, r.Register("send_email", h))
	err := r.Register("send_email", h)
	assert.Error(t, err)
}

func TestLookupUnknownJobType(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("missing")
	assert.False(t, ok)
}
