package session_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/odi-scan/pkg/device/devicetest"
	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/session"
)

func TestAccumulator_AppendKeepsOrder(t *testing.T) {
	var a session.Accumulator
	for i := 1; i <= 3; i++ {
		p := a.Append(models.ScannedPage{Image: devicetest.Page(i, i)})
		assert.Equal(t, i, p.SequenceId)
	}
	require.Equal(t, 3, a.Len())
	for i, p := range a.Pages() {
		assert.Equal(t, i+1, p.Width())
	}

	p, ok := a.Page(2)
	assert.True(t, ok)
	assert.Equal(t, 2, p.SequenceId)
	_, ok = a.Page(4)
	assert.False(t, ok)
	_, ok = a.Page(0)
	assert.False(t, ok)
}

func TestAccumulator_PagesIsACopy(t *testing.T) {
	var a session.Accumulator
	a.Append(models.ScannedPage{ScanId: "a"})
	pages := a.Pages()
	pages[0].ScanId = "changed"
	p, _ := a.Page(1)
	assert.Equal(t, "a", p.ScanId)
}

func TestAccumulator_DrainEmpty(t *testing.T) {
	var a session.Accumulator
	called := false
	err := a.Drain(func([]models.ScannedPage) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, session.ErrNoPages)
	assert.True(t, session.IsNoPages(err))
	assert.False(t, called)
}

func TestAccumulator_DrainClearsOnSuccessOnly(t *testing.T) {
	var a session.Accumulator
	a.Append(models.ScannedPage{})
	a.Append(models.ScannedPage{})

	failure := errors.New("disk full")
	err := a.Drain(func(p []models.ScannedPage) error {
		assert.Len(t, p, 2)
		return failure
	})
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, a.Len())

	require.NoError(t, a.Drain(func([]models.ScannedPage) error { return nil }))
	assert.Equal(t, 0, a.Len())

	p := a.Append(models.ScannedPage{})
	assert.Equal(t, 1, p.SequenceId)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", session.Idle.String())
	assert.Equal(t, "device-selected", session.DeviceSelected.String())
	assert.Equal(t, "acquiring", session.Acquiring.String())
	assert.Equal(t, "exporting", session.Exporting.String())
	b, err := session.Exporting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "exporting", string(b))
}
