package transfer

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/artcast/internal/logging"
	"github.com/danmuck/artcast/internal/observability"
	"github.com/danmuck/artcast/internal/protocol/framer"
	"github.com/danmuck/artcast/internal/protocol/packet"
	"github.com/danmuck/artcast/internal/transport"
)

const DefaultTopic = "tunesyncmq/update/albumart"

var ErrMissingTopic = errors.New("transfer: missing topic")

// PublishError reports the packet that exhausted its publish attempts. The
// transfer stops there; earlier packets were already sent.
type PublishError struct {
	Index    int
	Count    int
	Attempts int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("transfer: publish packet %d/%d after %d attempts: %v", e.Index+1, e.Count, e.Attempts, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// NewAsset builds an asset with a CRC-32 (IEEE) over payload.
func NewAsset(id uint32, filename string, payload []byte) framer.Asset {
	return framer.Asset{
		ID:       id,
		Filename: filename,
		CRC:      crc32.ChecksumIEEE(payload),
		Payload:  payload,
	}
}

// NewAssetID returns a random id for correlating an asset's packets.
func NewAssetID() uint32 {
	return uuid.New().ID()
}

// Sender frames assets and publishes their packets in order on one topic.
// A Sender is not safe for concurrent use; use one per goroutine.
type Sender struct {
	Publisher transport.Publisher
	Topic     string
	Limits    framer.Limits
	// MaxAttempts bounds publishes per packet; values below 1 mean 1.
	MaxAttempts int
	Backoff     transport.BackoffConfig
	Logger      zerolog.Logger

	rng *rand.Rand
}

func NewSender(pub transport.Publisher, topic string) *Sender {
	return &Sender{
		Publisher:   pub,
		Topic:       topic,
		Limits:      framer.DefaultLimits(),
		MaxAttempts: 3,
		Backoff:     transport.DefaultBackoff(),
		Logger:      logging.New("transfer"),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Result summarizes one completed transfer.
type Result struct {
	ID       uint32
	CRC      uint32
	Packets  int
	Bytes    int
	Retries  int
	Duration time.Duration
}

// Send frames asset and publishes every packet in chunk order. Framing
// errors are returned before anything is published. A packet that fails
// all attempts aborts the transfer.
func (s *Sender) Send(ctx context.Context, asset framer.Asset) (Result, error) {
	if strings.TrimSpace(s.Topic) == "" {
		return Result{}, ErrMissingTopic
	}
	packets, err := framer.Frame(asset, s.Limits)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := Result{ID: asset.ID, CRC: asset.CRC}
	logger := s.Logger.With().Uint32("asset_id", asset.ID).Str("topic", s.Topic).Logger()
	logger.Info().
		Str("filename", asset.Filename).
		Int("bytes", len(asset.Payload)).
		Int("packets", len(packets)).
		Msg("transfer_start")

	for i, p := range packets {
		// Brokers may hold the payload for redelivery, so each packet gets
		// its own buffer.
		buf, err := p.MarshalBinary()
		if err != nil {
			observability.RecordAsset(s.Topic, false)
			return res, fmt.Errorf("transfer: encode packet %d: %w", i, err)
		}
		retries, err := s.publish(ctx, buf)
		res.Retries += retries
		if err != nil {
			observability.RecordAsset(s.Topic, false)
			logger.Error().Err(err).Int("index", i).Msg("transfer_abort")
			return res, &PublishError{Index: i, Count: len(packets), Attempts: retries + 1, Err: err}
		}
		res.Packets++
		res.Bytes += len(buf)
		logger.Debug().
			Str("type", p.Type().String()).
			Uint8("chunk", p.Index()).
			Uint32("offset", p.Offset()).
			Int("size", len(buf)).
			Msg("packet_published")
	}
	res.Duration = time.Since(start)
	observability.RecordAsset(s.Topic, true)
	logger.Info().
		Int("packets", res.Packets).
		Int("wire_bytes", res.Bytes).
		Int("retries", res.Retries).
		Dur("duration", res.Duration).
		Msg("transfer_complete")
	return res, nil
}

// publish sends one packet, retrying with backoff. It returns the number of
// retries used.
func (s *Sender) publish(ctx context.Context, wire []byte) (int, error) {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			observability.RecordRetry(s.Topic)
			if err := transport.Wait(ctx, s.Backoff, attempt-1, s.rng); err != nil {
				return attempt - 2, err
			}
		}
		start := time.Now()
		err := s.Publisher.Publish(ctx, s.Topic, wire)
		if err == nil {
			observability.RecordPacket(s.Topic, packetType(wire), len(wire), time.Since(start))
			return attempt - 1, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return attempt - 1, err
		}
		s.Logger.Warn().Err(err).Int("attempt", attempt).Msg("publish_failed")
	}
	return attempts - 1, lastErr
}

func packetType(wire []byte) string {
	if len(wire) == 0 {
		return "empty"
	}
	return packet.PacketType(wire[0]).String()
}
