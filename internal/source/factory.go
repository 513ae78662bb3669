package source

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"tilt_control/internal/config"
	"tilt_control/internal/logger"
)

// FromConfig builds the source selected by cfg.Kind.
func FromConfig(cfg config.SourceConfig, clk clock.Clock, log *logger.Logger) (Source, error) {
	switch cfg.Kind {
	case config.SourceIoTtalk:
		src, err := NewIoTtalk(IoTtalkConfig{
			URL:         cfg.IoTtalk.URL,
			DeviceAddr:  cfg.IoTtalk.DeviceAddr,
			DeviceName:  cfg.IoTtalk.DeviceName,
			DeviceModel: cfg.IoTtalk.DeviceModel,
			Feature:     cfg.IoTtalk.Feature,
			Timeout:     cfg.IoTtalk.Timeout,
			Clock:       clk,
			Logger:      log.Named("iottalk"),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceMQTT:
		src, err := NewMQTT(MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Clock:    clk,
			Logger:   log.Named("mqtt"),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceSynthetic:
		return NewSynthetic(clk, cfg.Synthetic.Amplitude, cfg.Synthetic.Period), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}
