package escl_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stapelberg/airscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/odi-scan/pkg/device"
	"github.com/denysvitali/odi-scan/pkg/device/escl"
)

func TestMain(m *testing.M) {
	logrus.StandardLogger().SetLevel(logrus.DebugLevel)
	os.Exit(m.Run())
}

type testScanner struct {
	files []io.Reader
	idx   int
	err   error
}

func (t *testScanner) ScanPage() bool {
	if t.idx+1 <= len(t.files) {
		t.idx++
		return true
	}
	return false
}

func (t *testScanner) CurrentPage() io.Reader {
	if t.idx == 0 {
		return bytes.NewBuffer(nil)
	}
	return t.files[t.idx-1]
}

func (t *testScanner) Err() error {
	return t.err
}

var _ escl.PageScanner = (*testScanner)(nil)

func jpegPage(t *testing.T, w, h int) io.Reader {
	buf := bytes.NewBuffer(nil)
	require.NoError(t, jpeg.Encode(buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf
}

// waitFor drains state changes until an acquisition result arrives.
func waitFor(t *testing.T, m *device.Manager) device.Event {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-m.Events():
			if _, ok := ev.(device.StateChanged); ok {
				continue
			}
			return ev
		case <-timeout:
			t.Fatal("no acquisition result")
			return nil
		}
	}
}

func TestBackend_AcquireReturnsLastPage(t *testing.T) {
	var gotHost string
	var gotSettings *airscan.ScanSettings
	b := escl.New(escl.Config{
		Hosts:  []string{"scanner.lan"},
		Source: "Feeder",
		Start: func(host string, settings *airscan.ScanSettings) (escl.PageScanner, error) {
			gotHost = host
			gotSettings = settings
			return &testScanner{files: []io.Reader{jpegPage(t, 16, 8), jpegPage(t, 32, 24)}}, nil
		},
	})
	m := device.NewManager(b, device.WithEventBuffer(64))
	require.NoError(t, m.OpenManager())
	require.NoError(t, m.SelectDevice("scanner.lan"))
	require.NoError(t, m.Acquire(context.Background()))

	ev := waitFor(t, m)
	acquired, ok := ev.(device.ImageAcquired)
	require.True(t, ok, "got %#v", ev)
	assert.Equal(t, 32, acquired.Image.Bounds().Dx())
	assert.Equal(t, 24, acquired.Image.Bounds().Dy())
	assert.Equal(t, 2, b.ImageCount())

	assert.Equal(t, "scanner.lan", gotHost)
	require.NotNil(t, gotSettings)
	assert.Equal(t, "Feeder", gotSettings.InputSource)
	assert.Equal(t, "image/jpeg", gotSettings.DocumentFormat)
	assert.False(t, gotSettings.Duplex)
}

func TestBackend_JobFailure(t *testing.T) {
	b := escl.New(escl.Config{
		Hosts: []string{"scanner.lan"},
		Start: func(string, *airscan.ScanSettings) (escl.PageScanner, error) {
			return &testScanner{err: errors.New("adf empty")}, nil
		},
	})
	m := device.NewManager(b, device.WithEventBuffer(64))
	require.NoError(t, m.OpenManager())
	require.NoError(t, m.SelectDevice("scanner.lan"))
	require.NoError(t, m.Acquire(context.Background()))

	ev := waitFor(t, m)
	failed, ok := ev.(device.AcquisitionFailed)
	require.True(t, ok, "got %#v", ev)
	assert.Contains(t, failed.Reason.Error(), "adf empty")
}

func TestBackend_OpenWithoutHosts(t *testing.T) {
	m := device.NewManager(escl.New(escl.Config{}))
	assert.Error(t, m.OpenManager())
}

func TestBackend_SelectUnknownHost(t *testing.T) {
	m := device.NewManager(escl.New(escl.Config{Hosts: []string{"a"}}), device.WithEventBuffer(64))
	require.NoError(t, m.OpenManager())
	assert.ErrorIs(t, m.SelectDevice("b"), device.ErrUnknownDevice)
}

func TestBackend_RealScanner(t *testing.T) {
	scanner := os.Getenv("SCANNER_NAME")
	if scanner == "" {
		t.Skip("SCANNER_NAME not set, skipping test")
	}
	m := device.NewManager(escl.New(escl.Config{Hosts: []string{scanner}}), device.WithEventBuffer(64))
	require.NoError(t, m.OpenManager())
	require.NoError(t, m.SelectDevice(scanner))
	require.NoError(t, m.Acquire(context.Background()))

	timeout := time.After(2 * time.Minute)
	for {
		select {
		case ev := <-m.Events():
			switch ev := ev.(type) {
			case device.ImageAcquired:
				t.Logf("acquired %v", ev.Image.Bounds())
				return
			case device.AcquisitionFailed:
				t.Fatal(ev.Reason)
			}
		case <-timeout:
			t.Fatal("scanner did not complete")
		}
	}
}
