package appshell

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunPassesCode(t *testing.T) {
	var got []string
	run := func(_ context.Context, argv []string, _, _ io.Writer) int {
		got = argv
		return 1
	}
	assert.Equal(t, 1, Run(context.Background(), run, []string{"-reads", "5"}, io.Discard, io.Discard))
	assert.Equal(t, []string{"-reads", "5"}, got)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := func(context.Context, []string, io.Writer, io.Writer) int { return 0 }
	failed := func(context.Context, []string, io.Writer, io.Writer) int { return 1 }
	usage := func(context.Context, []string, io.Writer, io.Writer) int { return 2 }
	assert.Equal(t, ExitCanceled, Run(ctx, ok, nil, io.Discard, io.Discard))
	assert.Equal(t, 1, Run(ctx, failed, nil, io.Discard, io.Discard))
	assert.Equal(t, 2, Run(ctx, usage, nil, io.Discard, io.Discard))
}
