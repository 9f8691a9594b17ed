package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/env_station/internal/config"
	"github.com/relabs-tech/env_station/internal/gps"
	"github.com/relabs-tech/env_station/internal/orientation"
	"github.com/relabs-tech/env_station/internal/telemetry"
)

var errNoBroker = errors.New("MQTT_BROKER is required")

// RunConsoleMQTT prints every telemetry line and GPS update seen on the
// broker until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	if cfg.MQTTBroker == "" {
		return errNoBroker
	}
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	err = subscribe(client, cfg.TopicTelemetry, func(payload []byte) {
		f, err := telemetry.Decode(string(payload))
		if err != nil {
			log.Printf("console: %v", err)
			return
		}
		fmt.Print(FormatFrame(f))
	})
	if err != nil {
		return err
	}

	err = subscribe(client, cfg.TopicGPS, func(payload []byte) {
		pos := gps.UnknownPosition()
		if err := json.Unmarshal(payload, &pos); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Println(formatPosition(pos))
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

// FormatFrame renders a decoded line the way the console shows it.
func FormatFrame(f telemetry.Frame) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[AHT ] T=%6.2fC H=%6.2f%% status=0x%02X\n", f.AHTTemperature, f.AHTHumidity, f.AHTStatus)
	fmt.Fprintf(&b, "[BMP ] T=%6.2fC P=%9.2fPa alt=%7.2fm\n", f.BMPTemperature, f.BMPPressure, f.Altitude)

	if f.MPUOk {
		pose := orientation.FromSample(f.Ax, f.Ay, f.Az, f.Heading)
		fmt.Fprintf(&b, "[IMU ] ax=%6d ay=%6d az=%6d  gx=%6d gy=%6d gz=%6d  T=%6.2fC  ROLL=%6.2f PITCH=%6.2f\n",
			f.Ax, f.Ay, f.Az, f.Gx, f.Gy, f.Gz, f.MPUTemperature, pose.Roll, pose.Pitch)
	} else {
		b.WriteString("[IMU ] no data\n")
	}

	if f.LuxOk {
		fmt.Fprintf(&b, "[LUX ] %8.2f lx\n", f.Lux)
	} else {
		b.WriteString("[LUX ] no data\n")
	}

	if f.MagOk {
		fmt.Fprintf(&b, "[MAG ] x=%6d y=%6d z=%6d  HEAD=%5.1f°\n", f.MagX, f.MagY, f.MagZ, f.Heading)
	} else {
		b.WriteString("[MAG ] no data\n")
	}

	if f.GPSFix {
		fmt.Fprintf(&b, "[GPS ] lat=%.6f lon=%.6f\n", f.Latitude, f.Longitude)
	} else {
		b.WriteString("[GPS ] no fix\n")
	}
	return b.String()
}

func formatPosition(p gps.Position) string {
	fix := "no fix"
	if p.Fix {
		fix = fmt.Sprintf("lat=%.6f lon=%.6f", p.Latitude, p.Longitude)
	}
	when := "time unknown"
	if p.DateTimeValid {
		when = p.DateTime + " UTC"
	}
	return fmt.Sprintf("[POS ] %s  %s", fix, when)
}
