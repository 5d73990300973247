package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Template renders Default as a config.toml.
func Template() (string, error) {
	out, err := toml.Marshal(toFile(Default()))
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(out), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg Config) fileConfig {
	return fileConfig{
		Broker: fileBroker{
			URL:            cfg.Broker.URL,
			User:           cfg.Broker.User,
			Password:       cfg.Broker.Password,
			ClientID:       cfg.Broker.ClientID,
			ConnectTimeout: cfg.Broker.ConnectTimeout.String(),
			QoS:            int(cfg.Broker.QoS),
			Linger:         cfg.Broker.Linger.String(),
			Exchange:       cfg.Broker.Exchange,
		},
		Transfer: fileTransfer{
			Topic:         cfg.Topic,
			MaxPacketSize: cfg.Limits.MaxPacketSize,
			HeaderReserve: cfg.Limits.HeaderReserve,
			MaxAttempts:   cfg.MaxAttempts,
			Backoff: fileBackoff{
				InitialDelay: cfg.Backoff.InitialDelay.String(),
				Multiplier:   cfg.Backoff.Multiplier,
				MaxDelay:     cfg.Backoff.MaxDelay.String(),
				Jitter:       cfg.Backoff.Jitter,
			},
		},
		Artwork: fileArtwork{
			Size:    cfg.Artwork.Size,
			Quality: cfg.Artwork.Quality,
			Raw:     cfg.Artwork.Raw,
		},
		Metrics: fileMetrics{
			Pushgateway: cfg.Metrics.Pushgateway,
			Job:         cfg.Metrics.Job,
		},
	}
}
