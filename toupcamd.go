package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/toupcam/toupcam-go/core"
	"github.com/toupcam/toupcam-go/server"
	"github.com/toupcam/toupcam-go/usb"
	"github.com/toupcam/toupcam-go/usbcap"
)

const version = "0.3.1"

type runStats struct {
	frames    uint64 // atomic
	lastNanos int64  // atomic
}

func main() {
	// run owns all the deferred teardown; the exit code travels back
	// here so libusb context close and camera release happen on the
	// error paths too.
	os.Exit(run())
}

func run() int {
	options := parseFlags()

	if options.versionFlag {
		fmt.Printf("toupcamd version %s\n", version)
		return 0
	}

	stderrWriter, stderrLogger, longWriter := initLoggers(options.logfile, options.verbose)

	if options.decode != "" {
		if err := usbcap.DecodeFile(options.decode, os.Stdout); err != nil {
			stderrLogger.Printf("decode: %s", err)
			return 1
		}
		return 0
	}

	stderrLogger.Print("toupcamd is starting.")

	var buses []core.Bus
	if options.withusb {
		longWriter.Log("initing gousb")
		g := usb.InitGoUSB(longWriter)
		defer g.Close()
		buses = append(buses, g)
	}
	if options.emulator {
		longWriter.Log("initing emulator")
		buses = append(buses, usb.InitEmulator())
	}
	if len(buses) == 0 {
		stderrLogger.Printf("No transports enabled")
		return 1
	}
	b := usb.Init(buses...)

	cam, err := core.Open(b, longWriter)
	if err != nil {
		stderrLogger.Printf("open: %s", err)
		return 1
	}
	defer cam.Close()

	var stats runStats
	stream := core.NewStream(cam, longWriter)

	if options.addr != "" {
		statusFn := func() server.Status {
			return server.Status{
				Version:   version,
				Device:    cam.Path(),
				Streaming: cam.Streaming(),
				Mode:      cam.Mode().String(),
				Depth:     cam.Depth().String(),
				Frames:    atomic.LoadUint64(&stats.frames),
				Dropped:   stream.Dropped(),
				LastTook:  time.Duration(atomic.LoadInt64(&stats.lastNanos)).String(),
			}
		}
		s, err := server.New(options.addr, statusFn, longWriter, stderrWriter)
		if err != nil {
			stderrLogger.Printf("server: %s", err)
			return 1
		}
		go func() {
			if err := s.Run(); err != nil {
				stderrLogger.Printf("server: %s", err)
			}
		}()
	}

	// Ctrl-C becomes a stop request; the producer notices it within
	// one bulk timeout.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		stderrLogger.Print("stopping.")
		stream.Stop()
	}()

	count := 0
	for f := range stream.Frames() {
		atomic.AddUint64(&stats.frames, 1)
		atomic.StoreInt64(&stats.lastNanos, int64(f.Frame.Elapsed))

		if options.outDir != "" {
			name := filepath.Join(options.outDir, fmt.Sprintf("img_%03d.raw", count))
			if err := os.WriteFile(name, f.Frame.Data, 0o644); err != nil {
				stderrLogger.Printf("write %s: %s", name, err)
				stream.Stop()
			}
		}

		count++
		if options.frames > 0 && count >= options.frames {
			stream.Stop()
		}
	}

	if err := stream.Err(); err != nil {
		stderrLogger.Printf("stream: %s", err)
		return 1
	}
	stderrLogger.Printf("toupcamd finished, %d frames.", count)
	return 0
}
