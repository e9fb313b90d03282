// Package mqtt subscribes to the surveillance controller's announcement
// topics and feeds parsed messages into the sync engine. Connection care
// (reconnects, keepalive) belongs to the client library; from the engine's
// point of view a broker outage just means no events arrive.
package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/your-org/videosync/internal/event"
)

const disconnectQuiesceMillis = 250

// Sink receives the parsed messages. The engine implements it.
type Sink interface {
	ApplyStateChange(sc event.StateChange)
	Submit(ev event.ArtifactEvent)
}

// Config configures the broker connection and the topic namespace.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	KeepAlive   time.Duration
}

// Adapter owns the paho client and the subscription.
type Adapter struct {
	cfg    Config
	client pahomqtt.Client
	sink   Sink
	logger *zap.Logger
}

func New(cfg Config, sink Sink, logger *zap.Logger) *Adapter {
	a := &Adapter{cfg: cfg, sink: sink, logger: logger}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOnConnectHandler(a.onConnect)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("broker connection lost", zap.Error(err))
	})

	a.client = pahomqtt.NewClient(opts)
	return a
}

// Start begins connecting. With connect-retry enabled the call returns
// immediately and the client keeps dialing in the background; an unreachable
// broker is not an error here.
func (a *Adapter) Start() {
	a.logger.Info("connecting to broker",
		zap.String("broker", a.cfg.BrokerURL),
		zap.String("client_id", a.cfg.ClientID),
	)
	token := a.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			a.logger.Error("broker connect failed", zap.Error(err))
		}
	}()
}

// Close disconnects from the broker, allowing in-flight handlers a short
// quiesce.
func (a *Adapter) Close() {
	a.client.Disconnect(disconnectQuiesceMillis)
}

func (a *Adapter) onConnect(client pahomqtt.Client) {
	topic := fmt.Sprintf("%s/#", a.cfg.TopicPrefix)
	a.logger.Info("broker connected, subscribing", zap.String("topic", topic))

	token := client.Subscribe(topic, 1, a.handleMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			a.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

func (a *Adapter) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	parsed, ok := Parse(a.cfg.TopicPrefix, msg.Topic(), msg.Payload(), time.Now())
	if !ok {
		return
	}
	switch {
	case parsed.StateChange != nil:
		a.sink.ApplyStateChange(*parsed.StateChange)
	case parsed.Artifact != nil:
		a.logger.Debug("artifact announced",
			zap.String("topic", msg.Topic()),
			zap.String("artifact_id", parsed.Artifact.ID),
		)
		a.sink.Submit(*parsed.Artifact)
	}
}
