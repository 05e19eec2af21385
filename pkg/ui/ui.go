// Package ui is the desktop front end of a scan session: one window with
// four actions and a preview of the last scanned page.
package ui

import (
	"context"
	"fmt"
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/odi-scan/pkg/models"
	"github.com/denysvitali/odi-scan/pkg/session"
)

var log = logrus.StandardLogger().WithField("package", "ui")

var previewSize = fyne.NewSize(420, 594)

type Window struct {
	w          fyne.Window
	controller *session.Controller

	preview *canvas.Image
	status  *widget.Label

	selectButton      *widget.Button
	scanButton        *widget.Button
	destinationButton *widget.Button
	finishButton      *widget.Button
}

// New builds the window. Bind must be called before it is shown.
func New(a fyne.App, title string) *Window {
	u := &Window{
		w:      a.NewWindow(title),
		status: widget.NewLabel(""),
	}
	u.preview = canvas.NewImageFromImage(nil)
	u.preview.FillMode = canvas.ImageFillContain
	u.preview.SetMinSize(previewSize)

	u.selectButton = widget.NewButton("Select device", u.onSelectDevice)
	u.scanButton = widget.NewButton("Scan", u.onScan)
	u.destinationButton = widget.NewButton("Choose destination", u.onChooseDestination)
	u.finishButton = widget.NewButton("Finish", u.onFinish)

	buttons := container.NewGridWithColumns(4,
		u.selectButton,
		u.scanButton,
		u.destinationButton,
		u.finishButton,
	)
	u.w.SetContent(container.NewBorder(buttons, u.status, nil, nil, u.preview))
	u.w.Resize(fyne.NewSize(previewSize.Width+40, previewSize.Height+120))
	return u
}

// Bind attaches the session driven by the window. The controller must
// have been created with this window as its preview sink and notifier.
func (u *Window) Bind(controller *session.Controller) {
	u.controller = controller
	u.refreshStatus()
}

// ShowAndRun opens the scanning backend, starts delivering device events
// on the UI thread and blocks until the window is closed.
func (u *Window) ShowAndRun(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go u.controller.Run(ctx, func(fn func()) {
		fyne.Do(func() {
			fn()
			u.refreshStatus()
		})
	})
	go func() {
		if err := u.controller.Open(); err == nil {
			fyne.Do(u.refreshStatus)
		}
	}()
	u.w.ShowAndRun()
}

// ShowPreview replaces the preview with the page. It runs on the UI
// thread.
func (u *Window) ShowPreview(page models.ScannedPage) error {
	if page.Image == nil {
		return fmt.Errorf("page %s has no image", page.Id())
	}
	u.setPreview(page.Image)
	return nil
}

func (u *Window) setPreview(img image.Image) {
	u.preview.Image = img
	u.preview.Refresh()
}

// Notify shows err in a modal dialog.
func (u *Window) Notify(title string, err error) {
	log.WithField("title", title).Error(err)
	fyne.Do(func() {
		dialog.ShowError(fmt.Errorf("%s: %w", title, err), u.w)
	})
}

func statusText(s session.Status) string {
	device := s.Device
	if device == "" {
		device = "none"
	}
	text := fmt.Sprintf("%d page(s) | destination: %s | device: %s", s.Pages, s.Destination, device)
	if s.State == session.Acquiring {
		text += " | scanning..."
	}
	return text
}

func (u *Window) refreshStatus() {
	if u.controller == nil {
		return
	}
	u.status.SetText(statusText(u.controller.Status()))
}

func (u *Window) onSelectDevice() {
	devices, err := u.controller.Devices()
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	if len(devices) == 0 {
		dialog.ShowInformation("Select device", "No scanner found.", u.w)
		return
	}

	chooser := widget.NewSelect(devices, nil)
	if current := u.controller.Status().Device; current != "" {
		chooser.SetSelected(current)
	} else {
		chooser.SetSelectedIndex(0)
	}
	dialog.ShowCustomConfirm("Select device", "Select", "Cancel", chooser, func(ok bool) {
		if !ok || chooser.Selected == "" {
			return
		}
		if err := u.controller.SelectDevice(chooser.Selected); err != nil {
			dialog.ShowError(err, u.w)
		}
		u.refreshStatus()
	}, u.w)
}

func (u *Window) onScan() {
	if err := u.controller.Scan(context.Background()); err != nil {
		dialog.ShowError(err, u.w)
	}
	u.refreshStatus()
}

func (u *Window) onChooseDestination() {
	dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if uri == nil {
			return
		}
		if err := u.controller.SetDestination(uri.Path()); err != nil {
			dialog.ShowError(err, u.w)
		}
		u.refreshStatus()
	}, u.w)
}

func (u *Window) onFinish() {
	doc, err := u.controller.Finish()
	switch {
	case session.IsNoPages(err):
		dialog.ShowInformation("Finish", err.Error(), u.w)
	case err != nil:
		dialog.ShowError(err, u.w)
	default:
		u.setPreview(nil)
		dialog.ShowInformation("Finish", fmt.Sprintf("Saved %d page(s) to %s", doc.Pages, doc.Path), u.w)
	}
	u.refreshStatus()
}
