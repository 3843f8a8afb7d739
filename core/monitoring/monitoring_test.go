package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	errs []error
	tags []map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureModule(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(nil)

	CaptureModule(errors.New("boom"), "pipeline", "run_id", "r1", "dangling")
	CaptureException(nil, nil)

	assert.Len(t, mon.errs, 1)
	assert.Equal(t, map[string]string{"module": "pipeline", "run_id": "r1"}, mon.tags[0])
}

func TestRecoverCapturesAndRepanics(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(nil)

	assert.PanicsWithValue(t, "kaboom", func() {
		defer Recover()
		panic("kaboom")
	})
	if assert.Len(t, mon.errs, 1) {
		assert.Equal(t, "panic: kaboom", mon.errs[0].Error())
	}
}
