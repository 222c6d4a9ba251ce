package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	stan "github.com/nats-io/stan.go"
	"github.com/rs/zerolog"
)

func main() {
	var (
		natsURL   = flag.String("nats", "nats://nats-streaming:4222", "NATS URL")
		clusterID = flag.String("cluster", "test-cluster", "NATS Streaming cluster ID")
		clientID  = flag.String("client", "portfolio-pub", "NATS client ID")
		channel   = flag.String("channel", "portfolios", "NATS channel to publish to")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	if flag.NArg() < 1 {
		log.Fatal().Msg("usage: publisher [flags] <file_or_directory_path>")
	}
	path := flag.Arg(0)

	sc, err := stan.Connect(*clusterID, *clientID, stan.NatsURL(*natsURL))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS Streaming")
	}
	defer sc.Close()

	info, err := os.Stat(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to stat path")
	}

	publish := func(filePath string) error {
		if err := publishFile(sc, *channel, filePath); err != nil {
			return err
		}
		log.Info().Str("file", filePath).Msg("published")
		return nil
	}

	if info.IsDir() {
		err := filepath.WalkDir(path, func(filePath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isJSON(d.Name()) {
				return nil
			}
			return publish(filePath)
		})
		if err != nil {
			log.Fatal().Err(err).Msg("error walking directory")
		}
	} else {
		if !isJSON(path) {
			log.Fatal().Str("path", path).Msg("file is not a JSON")
		}
		if err := publish(path); err != nil {
			log.Fatal().Err(err).Msg("error publishing file")
		}
	}

	log.Info().Msg("all files published successfully")
}

func isJSON(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".json")
}

func publishFile(sc stan.Conn, channel, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("file %s is not valid JSON", filePath)
	}

	if err := sc.Publish(channel, data); err != nil {
		return fmt.Errorf("failed to publish file %s: %w", filePath, err)
	}
	return nil
}
