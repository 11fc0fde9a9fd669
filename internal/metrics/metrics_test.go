package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.SignIn(ResultSuccess, 3*time.Second)
	r.SignIn(ResultCancelled, time.Second)
	r.SignIn(ResultSuccess, 2*time.Second)
	r.Refresh(TriggerScheduled, ResultSuccess)
	r.Refresh(TriggerManual, ResultRejected)
	r.SignOut(BackendNotified)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.signIns.WithLabelValues(ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.signIns.WithLabelValues(ResultCancelled)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.refreshes.WithLabelValues(TriggerScheduled, ResultSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.refreshes.WithLabelValues(TriggerManual, ResultRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.signOuts.WithLabelValues(BackendNotified)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.ElementsMatch(t, []string{
		"spherekit_sign_ins_total",
		"spherekit_sign_in_duration_seconds",
		"spherekit_token_refreshes_total",
		"spherekit_sign_outs_total",
	}, names)
}

func TestRecorder_SignInDuration(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.SignIn(ResultSuccess, 3*time.Second)
	r.SignIn(ResultTimeout, 90*time.Second)

	var m dto.Metric
	require.NoError(t, r.signInDuration.Write(&m))
	h := m.GetHistogram()
	require.NotNil(t, h)
	assert.Equal(t, uint64(2), h.GetSampleCount())
	assert.InDelta(t, 93.0, h.GetSampleSum(), 1e-9)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SignIn(ResultFailed, time.Second)
		r.Refresh(TriggerOnDemand, ResultTransient)
		r.SignOut(BackendSkipped)
	})
}

func TestNewRecorder_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}
