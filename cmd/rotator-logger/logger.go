// Command rotator-logger subscribes to the bridge's status websocket
// and records position telemetry to InfluxDB.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/joho/godotenv"
)

func main() {
	// Influx credentials come from the environment or a local .env.
	_ = godotenv.Load()
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()

	// Points are buffered and written in the background; failures show
	// up on the errors channel instead of on WritePoint.
	writer := client.WriteApi(os.Getenv("INFLUX_ORG"), "rotator.raw")
	defer writer.Close()
	go func() {
		for err := range writer.Errors() {
			log.Printf("influx write: %v", err)
		}
	}()

	// The websocket drops whenever the bridge restarts; just keep
	// redialing.
	for {
		if err := streamStatus(writer); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

// flatten turns a decoded status document into dotted field names,
// one per leaf value.
func flatten(fields map[string]interface{}, value interface{}, prefix string) {
	switch value := value.(type) {
	case map[string]interface{}:
		for k, v := range value {
			flatten(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range value {
			flatten(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	default:
		fields[prefix[1:]] = value
	}
}

// streamStatus relays status updates from the bridge's websocket into
// Influx until the connection drops.
func streamStatus(writer api.WriteApi) error {
	url := os.Getenv("ROTATOR_ADDRESS")
	if url == "" {
		url = "ws://localhost:8502/api/ws"
	}
	defer writer.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		fields := make(map[string]interface{})
		flatten(fields, status, "")
		writer.WritePoint(influxdb2.NewPoint("rotator.status", nil, fields, time.Now()))
	}
}
