package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/danmuck/artcast/internal/artwork"
	"github.com/danmuck/artcast/internal/config"
	"github.com/danmuck/artcast/internal/logging"
	"github.com/danmuck/artcast/internal/observability"
	"github.com/danmuck/artcast/internal/protocol/framer"
	"github.com/danmuck/artcast/internal/protocol/packet"
	"github.com/danmuck/artcast/internal/transfer"
	"github.com/danmuck/artcast/internal/transport"
)

// dialPublisher is swapped in tests.
var dialPublisher = func(ctx context.Context, cfg transport.Config) (transport.Publisher, error) {
	return transport.Dial(ctx, cfg)
}

const usage = `usage: artcastctl <command> [flags]

commands:
  send <image>   prepare an image and publish it as album art packets
  help           show this message
`

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "artcastctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "send":
		return runSend(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type sendOptions struct {
	configPath string
	envFile    string
	id         uint32
	name       string
	topic      string
	broker     string
	raw        bool
	dryRun     bool
	size       int
	quality    int
}

func parseSendFlags(args []string) (sendOptions, []string, *pflag.FlagSet, error) {
	var opts sendOptions
	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config.toml")
	fs.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file with broker credentials")
	fs.Uint32Var(&opts.id, "id", 0, "asset id (0 picks a random id)")
	fs.StringVarP(&opts.name, "name", "n", "", "filename sent in the header packet (max 25 bytes)")
	fs.StringVarP(&opts.topic, "topic", "t", "", "topic override")
	fs.StringVarP(&opts.broker, "broker", "b", "", "broker url override")
	fs.BoolVar(&opts.raw, "raw", false, "send the file bytes without resizing")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "frame and print packets without connecting")
	fs.IntVar(&opts.size, "size", 0, "square edge in pixels (overrides config)")
	fs.IntVar(&opts.quality, "quality", 0, "jpeg quality (overrides config)")
	if err := fs.Parse(args); err != nil {
		return sendOptions{}, nil, fs, err
	}
	return opts, fs.Args(), fs, nil
}

func runSend(ctx context.Context, args []string, stdout io.Writer) error {
	opts, rest, fs, err := parseSendFlags(args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		fmt.Fprintf(stdout, "usage: artcastctl send [flags] <image>\n%s", fs.FlagUsages())
		return errors.New("send needs exactly one image path")
	}
	imagePath := rest[0]

	cfg, err := config.Resolve(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	applySendOverrides(&cfg, opts, fs)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	payload, err := artwork.Load(imagePath, cfg.Artwork)
	if err != nil {
		return err
	}
	id := opts.id
	if id == 0 {
		id = transfer.NewAssetID()
	}
	name := opts.name
	if name == "" {
		name = defaultName(imagePath, cfg.Artwork.Raw)
	}
	asset := transfer.NewAsset(id, name, payload)

	if opts.dryRun {
		return printPackets(stdout, asset, cfg.Limits)
	}

	pub, err := dialPublisher(ctx, cfg.Broker)
	if err != nil {
		return err
	}
	sender := transfer.NewSender(pub, cfg.Topic)
	sender.Limits = cfg.Limits
	sender.MaxAttempts = cfg.MaxAttempts
	sender.Backoff = cfg.Backoff

	res, sendErr := sender.Send(ctx, asset)

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Broker.Linger+cfg.Broker.ConnectTimeout)
	defer cancel()
	if err := pub.Close(closeCtx); err != nil {
		log.Warn().Err(err).Msg("close publisher")
	}
	pushMetrics(cfg.Metrics)

	if sendErr != nil {
		return sendErr
	}
	fmt.Fprintf(stdout, "sent %s id=%d crc=%#08x packets=%d bytes=%d in %s\n",
		name, res.ID, res.CRC, res.Packets, res.Bytes, res.Duration.Round(time.Millisecond))
	return nil
}

func applySendOverrides(cfg *config.Config, opts sendOptions, fs *pflag.FlagSet) {
	if opts.topic != "" {
		cfg.Topic = opts.topic
	}
	if opts.broker != "" {
		cfg.Broker.URL = opts.broker
	}
	if fs.Changed("raw") {
		cfg.Artwork.Raw = opts.raw
	}
	if opts.size > 0 {
		cfg.Artwork.Size = opts.size
	}
	if opts.quality > 0 {
		cfg.Artwork.Quality = opts.quality
	}
}

// defaultName uses the image's base name, with a .jpg extension when the
// image is re-encoded.
func defaultName(path string, raw bool) string {
	name := filepath.Base(path)
	if raw {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

// printPackets frames asset and prints what a receiver would decode.
func printPackets(w io.Writer, asset framer.Asset, limits framer.Limits) error {
	packets, err := framer.Frame(asset, limits)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "asset\t%d\tcrc\t%#08x\tbytes\t%d\n", asset.ID, asset.CRC, len(asset.Payload))
	fmt.Fprintln(tw, "INDEX\tTYPE\tOFFSET\tDATA\tWIRE")
	for _, p := range packets {
		wire, err := p.MarshalBinary()
		if err != nil {
			return err
		}
		decoded, err := packet.Decode(wire)
		if err != nil {
			return fmt.Errorf("packet %d does not decode: %w", p.Index(), err)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", decoded.Index(), decoded.Type(), decoded.Offset(), len(decoded.Data()), len(wire))
	}
	return tw.Flush()
}

func pushMetrics(cfg config.MetricsConfig) {
	if cfg.Pushgateway == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := observability.Push(ctx, cfg.Pushgateway, cfg.Job); err != nil {
		log.Warn().Err(err).Str("pushgateway", cfg.Pushgateway).Msg("push metrics")
	}
}
