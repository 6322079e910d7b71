package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/fes.go/pkg/cli/sh"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

var (
	mqttURL = "mqtt://localhost:1883/fes/"
)

func init() {
	if val := os.Getenv("FES_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := telemetry.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", func(topic string, payload []byte) {
		if !strings.HasSuffix(topic, "/status") {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		st, err := telemetry.DecodeStatus(payload)
		if err != nil {
			log.Printf("%s: bad status: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, sh.FormatStatus(st))
	})
	if err := q.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()
	<-(chan struct{})(nil)
}
