// Command h2mux demonstrates the write-path scheduler: a server-role
// transport queues one stream's metadata, data, and trailers, and a driver
// loop pumps BeginWrite/EndWrite cycles over an in-memory pipe while the
// other end decodes and logs the resulting frames.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"golang.org/x/net/http2/hpack"
	"golang.org/x/sync/errgroup"

	"example.com/h2mux/internal/config"
	"example.com/h2mux/internal/http2"
	"example.com/h2mux/internal/logger"
	"example.com/h2mux/internal/transport"
)

var configFilePath string

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the configuration file (TOML)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if configFilePath != "" {
		cfg, err = config.Load(configFilePath)
		if err != nil {
			log.Fatalf("Failed to load configuration from %s: %v", configFilePath, err)
		}
	} else {
		cfg = config.Default()
	}

	lg, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Close()

	if err := run(cfg, lg); err != nil {
		fmt.Fprintf(os.Stderr, "h2mux: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *logger.Logger) error {
	peerEnd, localEnd := net.Pipe()
	tr := transport.New(cfg.Transport, lg, false)

	payload := []byte("hello from the write scheduler\n")

	st := tr.NewStream(1)
	st.OnWriteClosed(func(forcedByReset bool, err error) {
		lg.Info("stream write side closed", logger.LogFields{"stream_id": st.ID(), "forced_by_reset": forcedByReset})
	})
	if err := st.QueueInitialMetadata(&transport.MetadataBatch{Fields: []hpack.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: "text/plain"},
	}}, func(err error) {
		lg.Info("initial metadata sent", logger.LogFields{"stream_id": st.ID()})
	}); err != nil {
		return err
	}
	if err := st.QueueData(payload, true); err != nil {
		return err
	}
	if err := st.QueueTrailingMetadata(&transport.MetadataBatch{}, nil); err != nil {
		return err
	}
	st.NotifyOnBytesWritten(uint64(len(payload)), func(err error) {
		lg.Info("payload transmission finalized", logger.LogFields{"stream_id": st.ID(), "bytes": len(payload)})
	})

	var g errgroup.Group
	g.Go(func() error {
		defer localEnd.Close()
		for tr.BeginWrite() {
			_, werr := localEnd.Write(tr.Outbuf().Bytes())
			tr.EndWrite(werr)
			if werr != nil {
				return fmt.Errorf("writing to connection: %w", werr)
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			fh, err := http2.ReadFrameHeader(peerEnd)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					return nil
				}
				return fmt.Errorf("reading frame header: %w", err)
			}
			payload := make([]byte, fh.Length)
			if _, err := io.ReadFull(peerEnd, payload); err != nil {
				return fmt.Errorf("reading frame payload: %w", err)
			}
			lg.Info("frame received", logger.LogFields{
				"type":      fh.Type.String(),
				"stream_id": fh.StreamID,
				"length":    fh.Length,
				"flags":     uint8(fh.Flags),
			})
		}
	})
	return g.Wait()
}
