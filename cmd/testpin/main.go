package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	wiegand "github.com/asjoyner/wiegand-decode"
)

func main() {
	// Define a flag for GPIO pins, defaulting to the pins the example wiring uses
	pinsFlag := flag.String("pins", "GPIO4,GPIO17", "Comma-separated list of GPIO pins to watch (e.g., GPIO4,GPIO17). If empty, all free pins are used.")
	flag.Parse()

	// Parse the comma-separated list of pins
	var pinNames []string
	if *pinsFlag != "" {
		for _, name := range strings.Split(*pinsFlag, ",") {
			pinNames = append(pinNames, strings.TrimSpace(name))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Swipe a badge and watch which pins pulse: D0 pulses for 0 bits, D1 for 1 bits.
	err := wiegand.ProbePins(ctx, pinNames, func(e wiegand.PinEvent) {
		fmt.Println(e)
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Shutting down")
}
