// Package publisher puts rendered tiles on screen.
package publisher

import (
	"fmt"

	"github.com/genricoloni/tilesync/internal/domain"
	"go.uber.org/zap"
)

// Publisher kinds accepted in the configuration
const (
	KindNotify = "notify"
	KindFile   = "file"
)

// Settings is the configuration a publisher is built from
type Settings interface {
	GetPublisher() string
	GetOutputFile() string
	GetAppID() string
}

// New creates the publisher selected in settings
func New(logger *zap.Logger, settings Settings) (domain.Publisher, error) {
	return newPublisher(logger, settings, NewSessionNotifier)
}

func newPublisher(logger *zap.Logger, settings Settings, dial func() (NotificationClient, error)) (domain.Publisher, error) {
	kind := settings.GetPublisher()

	switch kind {
	case KindNotify:
		client, err := dial()
		if err != nil {
			return nil, err
		}
		logger.Info("Publishing tiles as desktop notifications")
		return NewNotifyPublisher(logger, client, settings.GetAppID()), nil

	case KindFile:
		logger.Info("Publishing tiles to file", zap.String("path", settings.GetOutputFile()))
		return NewFilePublisher(logger, settings.GetOutputFile()), nil

	default:
		return nil, fmt.Errorf("unknown publisher %q (want %q or %q)", kind, KindNotify, KindFile)
	}
}
