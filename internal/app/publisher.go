package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/filbot/iss-tracker/internal/config"
	"github.com/filbot/iss-tracker/internal/fix"
	"github.com/filbot/iss-tracker/internal/telemetry"
)

// RunPublisher mirrors the position feed to MQTT: every confirmed fix as
// a retained message, plus dead-reckoned estimates on the poll cadence.
func RunPublisher(ctx context.Context, est *telemetry.Estimator) error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("publisher: connected to MQTT broker at %s", cfg.MQTTBroker)

	ticker := time.NewTicker(time.Duration(cfg.PollIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case f := <-est.Updates():
			publishFix(client, cfg.TopicFix, true, &f)

		case <-ticker.C:
			f := est.Estimate()
			publishFix(client, cfg.TopicEstimate, false, &f)
		}
	}
}

func publishFix(client mqtt.Client, topic string, retained bool, f *fix.Fix) {
	payload, err := json.Marshal(f)
	if err != nil {
		log.Printf("publisher: json marshal error: %v", err)
		return
	}
	token := client.Publish(topic, 0, retained, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("publisher: publish %s: %v", topic, token.Error())
	}
}
