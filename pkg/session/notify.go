package session

// LogNotifier reports errors to the log only.
type LogNotifier struct{}

func (LogNotifier) Notify(title string, err error) {
	log.WithField("title", title).Error(err)
}
