package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/artcast/internal/protocol/packet"
	"github.com/danmuck/artcast/internal/testutil/testlog"
	"github.com/danmuck/artcast/internal/transport"
)

func writeCover(t *testing.T, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 320))
	for y := 0; y < 320; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x ^ y), G: uint8(x * y), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRunSendDryRunPrintsPackets(t *testing.T) {
	testlog.Start(t)
	cover := writeCover(t, "cover.png")
	var out bytes.Buffer
	err := run(context.Background(), []string{"send", "--dry-run", "--env-file", "", "--raw", "--id", "456", cover}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "asset") || !strings.Contains(text, "456") {
		t.Fatalf("missing asset line:\n%s", text)
	}
	if !strings.Contains(text, "header") {
		t.Fatalf("missing header row:\n%s", text)
	}
}

func TestRunSendPublishesThroughDialedPublisher(t *testing.T) {
	testlog.Start(t)
	mem := transport.NewMemory()
	prev := dialPublisher
	dialPublisher = func(context.Context, transport.Config) (transport.Publisher, error) {
		return mem, nil
	}
	defer func() { dialPublisher = prev }()

	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[broker]\nlinger = \"0s\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cover := writeCover(t, "cover.png")
	var out bytes.Buffer
	args := []string{"send", "-c", cfgPath, "--env-file", "", "--id", "77", "--topic", "art/test", cover}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	msgs := mem.Messages()
	if len(msgs) == 0 {
		t.Fatalf("nothing published")
	}
	first, err := packet.Decode(msgs[0].Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h, ok := first.(*packet.HeaderPacket)
	if !ok {
		t.Fatalf("first message is %T", first)
	}
	if h.ID != 77 || h.Filename.String() != "cover.jpg" {
		t.Fatalf("unexpected header: id=%d name=%q", h.ID, h.Filename.String())
	}
	for i, m := range msgs {
		if m.Topic != "art/test" {
			t.Fatalf("message %d on %q", i, m.Topic)
		}
	}
	if !strings.Contains(out.String(), "sent cover.jpg id=77") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestRunRejectsBadInvocations(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	if err := run(context.Background(), nil, &out); err == nil {
		t.Fatalf("expected missing command error")
	}
	if err := run(context.Background(), []string{"fly"}, &out); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if err := run(context.Background(), []string{"send", "--env-file", ""}, &out); err == nil {
		t.Fatalf("expected missing image error")
	}
	long := writeCover(t, strings.Repeat("n", 30)+".png")
	if err := run(context.Background(), []string{"send", "--dry-run", "--env-file", "", long}, &out); err == nil {
		t.Fatalf("expected oversize filename error")
	}
}

func TestRunSendFlagsOverrideBeforeValidation(t *testing.T) {
	testlog.Start(t)
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[broker]\nurl = \"http://not-a-broker\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cover := writeCover(t, "cover.png")

	var out bytes.Buffer
	args := []string{"send", "--dry-run", "-c", cfgPath, "--env-file", "", cover}
	if err := run(context.Background(), args, &out); err == nil {
		t.Fatalf("expected invalid broker url from config to be rejected")
	}

	out.Reset()
	args = []string{"send", "--dry-run", "-c", cfgPath, "--env-file", "", "--broker", "tcp://localhost:1883", cover}
	if err := run(context.Background(), args, &out); err != nil {
		t.Fatalf("--broker should replace the invalid config url: %v", err)
	}
	if !strings.Contains(out.String(), "header") {
		t.Fatalf("missing packet table:\n%s", out.String())
	}
}

func TestDefaultName(t *testing.T) {
	testlog.Start(t)
	if got := defaultName("/art/cover image.png", false); got != "cover image.jpg" {
		t.Fatalf("re-encoded name: %q", got)
	}
	if got := defaultName("/art/cover.webp", true); got != "cover.webp" {
		t.Fatalf("raw name: %q", got)
	}
}
