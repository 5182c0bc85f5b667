// Package mqtt publishes decoded Wiegand credentials to an MQTT broker.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"

	wiegand "github.com/asjoyner/wiegand-decode"
)

// publishTimeout bounds how long Handle waits for the broker.
const publishTimeout = 5 * time.Second

// Config holds the broker connection used by NewClient and the publishing
// settings used by NewPublisher.
type Config struct {
	// Address for MQTT broker (e.g. "tcp://foobar.com:1883")
	BrokerAddr string
	// Username for MQTT broker (ignored if empty)
	Username string
	// Password for MQTT broker (ignored if empty)
	Password string
	// Client ID for MQTT broker (ignored if empty)
	ClientID string
	// MQTT topic to which we'll publish credentials
	Topic string
	// Payload encoding, EncodingText or EncodingCBOR
	Encoding Encoding
	// QoS level for published credentials
	QoS byte
}

// NewClient creates a client and keeps trying to connect in the background
// until it succeeds or ctx is done. Paho reconnects on its own afterwards.
func NewClient(ctx context.Context, c Config) MQTT.Client {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(c.BrokerAddr)
	opts.SetClientID(c.ClientID)
	opts.SetUsername(c.Username)
	opts.SetPassword(c.Password)
	opts.SetOnConnectHandler(
		func(client MQTT.Client) {
			log.Printf("MQTT: connected")
		})
	opts.SetConnectionLostHandler(
		func(client MQTT.Client, err error) {
			log.Printf("MQTT: connection lost: %v", err)
		})
	opts.SetReconnectingHandler(
		func(client MQTT.Client, options *MQTT.ClientOptions) {
			log.Printf("MQTT: reconnecting")
		})
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	client := MQTT.NewClient(opts)

	go func() {
		for {
			token := client.Connect()
			if token.Wait() && token.Error() == nil {
				return
			}
			log.Printf("MQTT: unable to connect, %s", token.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	return client
}

// Publisher sends every credential it is handed to one topic.
type Publisher struct {
	topic    string
	encoding Encoding
	publish  func(topic string, payload []byte) error
	now      func() time.Time
}

// NewPublisher publishes through client using the topic, encoding and QoS
// in c.
func NewPublisher(client MQTT.Client, c Config) (*Publisher, error) {
	if c.Topic == "" {
		return nil, errors.New("MQTT topic must be specified")
	}
	enc, err := ParseEncoding(string(c.Encoding))
	if err != nil {
		return nil, err
	}
	qos := c.QoS
	return &Publisher{
		topic:    c.Topic,
		encoding: enc,
		now:      time.Now,
		publish: func(topic string, payload []byte) error {
			token := client.Publish(topic, qos, false, payload)
			if !token.WaitTimeout(publishTimeout) {
				return fmt.Errorf("publish to %s: timed out after %s", topic, publishTimeout)
			}
			return token.Error()
		},
	}, nil
}

// Publish encodes c and sends it to the broker.
func (p *Publisher) Publish(c wiegand.Credential) error {
	payload, err := p.encoding.Encode(c, p.now())
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := p.publish(p.topic, payload); err != nil {
		return fmt.Errorf("MQTT: %w", err)
	}
	return nil
}

// Handle publishes c and logs any failure. It has the signature of
// wiegand.Config.Handler.
func (p *Publisher) Handle(c wiegand.Credential) {
	if err := p.Publish(c); err != nil {
		log.Printf("MQTT: unable to publish %s: %v", c, err)
	}
}
