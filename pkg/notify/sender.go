package notify

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/itohio/envmon/pkg/broker"
	"github.com/itohio/envmon/pkg/config"
)

// ErrUnknownKind is returned for an unsupported notify.kind.
var ErrUnknownKind = errors.New("unknown notifier kind")

// NewSender builds the transport selected by cfg.Kind. pub is only used by
// the mqtt kind and may be nil otherwise.
func NewSender(cfg *config.NotifyConfig, mqttCfg *config.MQTTConfig, pub broker.Publisher, logger *zap.Logger) (Sender, error) {
	switch cfg.Kind {
	case config.NotifyLog, "":
		return NewLog(logger), nil
	case config.NotifyPushover:
		return NewPushover(&cfg.Pushover), nil
	case config.NotifyMQTT:
		if pub == nil {
			return nil, fmt.Errorf("mqtt notifier: %w", broker.ErrNoBroker)
		}
		return NewMQTT(pub, mqttCfg.AlertTopic), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
