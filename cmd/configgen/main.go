package main

import (
	"flag"
	"log"

	"github.com/danmuck/artcast/internal/config"
)

func main() {
	output := flag.String("output", "config.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "config.toml", "config path for validation")
	envFile := flag.String("env-file", config.DefaultEnvFile, "dotenv file applied during validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input, *envFile)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated config at %s (broker=%s topic=%s max_packet_size=%d)",
			*input, cfg.Broker.URL, cfg.Topic, cfg.Limits.MaxPacketSize)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote config template to %s", *output)
}
