package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bananaslides/internal/domain"
)

func TestTaskPersister_CoalescesBehindSlowWrite(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})
	var mu sync.Mutex
	var got []string

	p := newTaskPersister(time.Second, func(_ context.Context, task *domain.ConversionTask, full bool) {
		if task.ProjectID == "1" {
			close(started)
			<-gate
		}
		mu.Lock()
		got = append(got, fmt.Sprintf("%s/%t", task.ProjectID, full))
		mu.Unlock()
	})

	p.enqueue(&domain.ConversionTask{ProjectID: "1"}, false)
	<-started
	p.enqueue(&domain.ConversionTask{ProjectID: "2"}, true)
	p.enqueue(&domain.ConversionTask{ProjectID: "3"}, false)
	assert.False(t, p.idle())

	p.close()
	close(gate)
	<-p.done

	assert.Equal(t, []string{"1/false", "3/true"}, got, "latest snapshot wins and a queued full write stays full")
	assert.True(t, p.idle())

	p.enqueue(&domain.ConversionTask{ProjectID: "4"}, false)
	assert.True(t, p.idle(), "writes after close are dropped")
}

func TestTaskPersister_WriteContextOutlivesCaller(t *testing.T) {
	errs := make(chan error, 1)
	p := newTaskPersister(time.Second, func(ctx context.Context, _ *domain.ConversionTask, _ bool) {
		errs <- ctx.Err()
	})
	defer p.close()

	p.enqueue(&domain.ConversionTask{}, true)

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("snapshot was not written")
	}
}
