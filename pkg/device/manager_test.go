package device_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/device/devicetest"
)

func TestMain(m *testing.M) {
	logrus.StandardLogger().SetLevel(logrus.DebugLevel)
	os.Exit(m.Run())
}

func openManager(t *testing.T, opts ...device.Option) (*device.Manager, *devicetest.Backend) {
	b := devicetest.New("flatbed", "feeder")
	m := device.NewManager(b, opts...)
	require.NoError(t, m.OpenManager())
	return m, b
}

func nextEvent(t *testing.T, m *device.Manager) device.Event {
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func assertNoEvent(t *testing.T, m *device.Manager) {
	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_OpenFailureLeavesManagerUnusable(t *testing.T) {
	b := devicetest.New("flatbed")
	b.OpenErr = errors.New("no DSM")
	m := device.NewManager(b)

	err := m.OpenManager()
	require.Error(t, err)
	assert.False(t, m.IsOpen())
	assert.ErrorIs(t, m.SelectDevice("flatbed"), device.ErrManagerClosed)
	assert.ErrorIs(t, m.Acquire(context.Background()), device.ErrManagerClosed)
	_, err = m.Sources()
	assert.ErrorIs(t, err, device.ErrManagerClosed)

	// a later retry succeeds
	b.OpenErr = nil
	require.NoError(t, m.OpenManager())
	assert.True(t, m.IsOpen())
	assert.NoError(t, m.SelectDevice("flatbed"))
}

func TestManager_SelectDeviceClosesPrevious(t *testing.T) {
	m, b := openManager(t)

	require.NoError(t, m.SelectDevice("flatbed"))
	assert.Equal(t, "flatbed", m.Device())
	require.NoError(t, m.SelectDevice("feeder"))
	assert.Equal(t, "feeder", m.Device())
	assert.Equal(t, "feeder", b.Selected())
	assert.Equal(t, 2, b.Closes())

	err := m.SelectDevice("missing")
	assert.ErrorIs(t, err, device.ErrUnknownDevice)
	assert.Equal(t, "", m.Device())
}

func TestManager_AcquireRequiresDevice(t *testing.T) {
	m, b := openManager(t)
	assert.ErrorIs(t, m.Acquire(context.Background()), device.ErrNoDevice)
	assert.Zero(t, b.Acquires())
}

func TestManager_AcquireRequestFailure(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	b.AcquireErr = errors.New("paper jam")

	err := m.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paper jam")
	assert.False(t, m.Acquiring())
}

func TestManager_AcquireCompletedFetchesLastImage(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))
	assert.True(t, m.Acquiring())

	first := devicetest.Page(10, 10)
	last := devicetest.Page(20, 30)
	b.Complete(first, last)

	ev := nextEvent(t, m)
	acquired, ok := ev.(device.ImageAcquired)
	require.True(t, ok, "got %#v", ev)
	assert.Equal(t, last, acquired.Image)
	assert.Equal(t, "flatbed", acquired.Device)
	assert.False(t, m.Acquiring())
}

func TestManager_ZeroImagesIsSilent(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))

	b.Complete()
	assertNoEvent(t, m)
	assert.False(t, m.Acquiring())
}

func TestManager_ImageFetchFailure(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))
	b.ImageErr = errors.New("transfer failed")

	b.Complete(devicetest.Page(5, 5))
	ev := nextEvent(t, m)
	failed, ok := ev.(device.AcquisitionFailed)
	require.True(t, ok, "got %#v", ev)
	assert.ErrorIs(t, failed.Reason, b.ImageErr)
}

func TestManager_AcquireFailed(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))

	reason := errors.New("cover open")
	b.Fail(reason)
	ev := nextEvent(t, m)
	failed, ok := ev.(device.AcquisitionFailed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Reason, reason)
}

func TestManager_StateChangedTracksEnabled(t *testing.T) {
	m, b := openManager(t)

	b.SetState(device.StateManagerOpen | device.StateSourceOpen | device.StateSourceEnabled)
	ev := nextEvent(t, m)
	assert.Equal(t, device.StateChanged{
		State:   device.StateManagerOpen | device.StateSourceOpen | device.StateSourceEnabled,
		Enabled: true,
	}, ev)
	assert.True(t, m.Enabled())

	b.SetState(device.StateManagerOpen | device.StateSourceOpen)
	ev = nextEvent(t, m)
	assert.Equal(t, false, ev.(device.StateChanged).Enabled)
	assert.False(t, m.Enabled())
}

func TestManager_AcquireTimeout(t *testing.T) {
	m, b := openManager(t, device.WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))

	ev := nextEvent(t, m)
	failed, ok := ev.(device.AcquisitionFailed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Reason, device.ErrAcquireTimeout)
	assert.False(t, m.Acquiring())

	b.Complete(devicetest.Page(3, 3))
	assertNoEvent(t, m)
}

func TestManager_LateFailureAfterTimeoutIsDropped(t *testing.T) {
	m, b := openManager(t, device.WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))
	_, ok := nextEvent(t, m).(device.AcquisitionFailed)
	require.True(t, ok)

	b.Fail(errors.New("jammed"))
	assertNoEvent(t, m)
}

func TestManager_AcquireAfterTimeoutDelivers(t *testing.T) {
	m, b := openManager(t, device.WithAcquireTimeout(20*time.Millisecond))
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))
	_, ok := nextEvent(t, m).(device.AcquisitionFailed)
	require.True(t, ok)

	b.Enqueue(devicetest.Page(4, 4))
	require.NoError(t, m.Acquire(context.Background()))
	acquired, ok := nextEvent(t, m).(device.ImageAcquired)
	require.True(t, ok)
	assert.Equal(t, 4, acquired.Image.Bounds().Dx())
}

func TestManager_CompletionStopsTimeout(t *testing.T) {
	m, b := openManager(t, device.WithAcquireTimeout(30*time.Millisecond))
	require.NoError(t, m.SelectDevice("flatbed"))
	require.NoError(t, m.Acquire(context.Background()))
	b.Complete(devicetest.Page(3, 3))

	_, ok := nextEvent(t, m).(device.ImageAcquired)
	require.True(t, ok)
	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestManager_AcquireCancelledContext(t *testing.T) {
	m, b := openManager(t)
	require.NoError(t, m.SelectDevice("flatbed"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Acquire(ctx), context.Canceled)
	assert.Zero(t, b.Acquires())
}
