// Package controller holds the UI-independent state machines behind the
// file list, upload and preview screens.
package controller

// Notifier surfaces user-visible messages, typically as toasts
type Notifier interface {
	NotifyInfo(message string)
	NotifyError(err error)
}

// NopNotifier discards every message
type NopNotifier struct{}

func (NopNotifier) NotifyInfo(string)  {}
func (NopNotifier) NotifyError(error) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return NopNotifier{}
	}
	return n
}
