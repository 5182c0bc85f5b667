package main

// Commandline for reading badges from a Wiegand reader. This turns flags into
// a wiegand.Config and wires up the outputs; decoding happens in the library.

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	wiegand "github.com/asjoyner/wiegand-decode"
	"github.com/asjoyner/wiegand-decode/bridge"
	"github.com/asjoyner/wiegand-decode/cdev"
	"github.com/asjoyner/wiegand-decode/feedback"
	"github.com/asjoyner/wiegand-decode/mqtt"
)

type options struct {
	backend  string
	d0, d1   string
	chip     string
	port     string
	baudRate int
	ledPin   int
	beepPin  int
	mqtt     mqtt.Config
	encoding string
}

var (
	cfg  wiegand.Config
	opts options
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "wiegand-reader",
	Short:        "Decode badges from a Wiegand reader",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.backend, "backend", "periph",
		"Edge source: periph (GPIO pin names), cdev (GPIO chip line offsets) or serial (bridge)")
	f.StringVar(&opts.d0, "d0", "GPIO4",
		"Wiegand D0 pin: a pin name for periph, a line offset or GPIOn name for cdev")
	f.StringVar(&opts.d1, "d1", "GPIO17",
		"Wiegand D1 pin: a pin name for periph, a line offset or GPIOn name for cdev")
	f.StringVar(&opts.chip, "chip", cdev.DefaultChip, "GPIO chip for the cdev backend")
	f.StringVar(&opts.port, "port", "/dev/ttyUSB0", "Serial port for the serial backend")
	f.IntVar(&opts.baudRate, "baud", bridge.DefaultBaudRate, "Baud rate for the serial backend")

	f.DurationVar(&cfg.Timeout, "timeout", wiegand.DefaultTimeout,
		"Quiet interval that ends a frame")
	f.DurationVar(&cfg.PollInterval, "poll", wiegand.DefaultPollInterval,
		"How often to check for a finished frame")
	f.IntVar(&cfg.MaxBits, "max-bits", wiegand.DefaultMaxBits, "Maximum bits per frame")
	f.BoolVar(&cfg.SiteCode, "site-code", false,
		"Decode 26-bit frames as an 8-bit site code and 16-bit card code")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every frame")

	f.IntVar(&opts.ledPin, "led", -1, "BCM/GPIO pin number for the reader's LED (-1 to disable)")
	f.IntVar(&opts.beepPin, "beeper", -1, "BCM/GPIO pin number for the reader's beeper (-1 to disable)")

	f.StringVar(&opts.mqtt.BrokerAddr, "mqtt-broker", "",
		"MQTT broker address, e.g. tcp://broker:1883 (empty to disable)")
	f.StringVar(&opts.mqtt.Topic, "mqtt-topic", "wiegand/credential", "MQTT topic for credentials")
	f.StringVar(&opts.mqtt.ClientID, "mqtt-client-id", "wiegand-reader", "MQTT client ID")
	f.StringVar(&opts.mqtt.Username, "mqtt-user", "", "MQTT username")
	f.StringVar(&opts.mqtt.Password, "mqtt-password", "", "MQTT password")
	f.StringVar(&opts.encoding, "mqtt-encoding", string(mqtt.EncodingText), "MQTT payload encoding: text or cbor")
}

func run(ctx context.Context) error {
	src, err := edgeSource()
	if err != nil {
		return err
	}
	cfg.Source = src

	handlers := []func(wiegand.Credential){
		func(c wiegand.Credential) { fmt.Println(c) },
	}

	if opts.mqtt.BrokerAddr != "" {
		enc, err := mqtt.ParseEncoding(opts.encoding)
		if err != nil {
			return err
		}
		opts.mqtt.Encoding = enc
		client := mqtt.NewClient(ctx, opts.mqtt)
		defer client.Disconnect(250)
		pub, err := mqtt.NewPublisher(client, opts.mqtt)
		if err != nil {
			return err
		}
		log.Printf("Publishing credentials to %s on %s", opts.mqtt.BrokerAddr, opts.mqtt.Topic)
		handlers = append(handlers, pub.Handle)
	}

	if opts.ledPin >= 0 || opts.beepPin >= 0 {
		ind, err := feedback.Open(feedback.Config{PinLED: opts.ledPin, PinBeeper: opts.beepPin})
		if err != nil {
			return err
		}
		defer ind.Close()
		handlers = append(handlers, ind.Handle)
	}

	cfg.Handler = func(c wiegand.Credential) {
		for _, h := range handlers {
			h(c)
		}
	}

	r, err := wiegand.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Wiegand reader: %w", err)
	}
	log.Printf("Listening for badges on %s backend...", opts.backend)
	err = r.Wait()
	log.Printf("Shutting down Wiegand reader")
	return err
}

func edgeSource() (wiegand.EdgeSource, error) {
	switch opts.backend {
	case "periph":
		return wiegand.NewPeriphSource(opts.d0, opts.d1)
	case "cdev":
		d0, err := cdev.ParseOffset(opts.d0)
		if err != nil {
			return nil, fmt.Errorf("cdev backend D0: %w", err)
		}
		d1, err := cdev.ParseOffset(opts.d1)
		if err != nil {
			return nil, fmt.Errorf("cdev backend D1: %w", err)
		}
		return cdev.Source{Chip: opts.chip, D0: d0, D1: d1}, nil
	case "serial":
		return bridge.Source{Port: opts.port, BaudRate: opts.baudRate}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.backend)
	}
}
