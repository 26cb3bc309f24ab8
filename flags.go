package main

import "flag"

type initOptions struct {
	logfile     string
	verbose     bool
	withusb     bool
	emulator    bool
	outDir      string
	frames      int
	addr        string
	decode      string
	versionFlag bool
}

func parseFlags() initOptions {
	var options initOptions
	flag.StringVar(
		&(options.logfile),
		"l",
		"",
		"Log into a file, rotating after 20MB",
	)
	flag.BoolVar(
		&(options.verbose),
		"v",
		false,
		"Mirror the detailed protocol trace to stderr or the logfile",
	)
	flag.BoolVar(
		&(options.withusb),
		"u",
		true,
		"Use USB devices. Can be disabled for testing environments. Example: toupcamd -e -u=false",
	)
	flag.BoolVar(
		&(options.emulator),
		"e",
		false,
		"Also offer the in-memory camera emulator as a device",
	)
	flag.StringVar(
		&(options.outDir),
		"o",
		"",
		"Write every captured frame to DIR/img_NNN.raw",
	)
	flag.IntVar(
		&(options.frames),
		"n",
		0,
		"Stop after capturing this many frames (0 = run until interrupted)",
	)
	flag.StringVar(
		&(options.addr),
		"d",
		"127.0.0.1:21327",
		"Diagnostics server listen address; empty disables it",
	)
	flag.StringVar(
		&(options.decode),
		"decode",
		"",
		"Decode a usbmon pcap capture to stdout and exit",
	)
	flag.BoolVar(
		&(options.versionFlag),
		"version",
		false,
		"Write version",
	)
	flag.Parse()
	return options
}
