package notify

import "github.com/gen2brain/beeep"

// Sender delivers one user-facing notification.
type Sender interface {
	Send(title, body string) error
}

// BeeepSender sends desktop notifications through the OS notification
// service.
type BeeepSender struct{}

func NewBeeepSender(appName string) *BeeepSender {
	if appName != "" {
		beeep.AppName = appName
	}

	return &BeeepSender{}
}

func (s *BeeepSender) Send(title, body string) error {
	return beeep.Notify(title, body, "")
}
