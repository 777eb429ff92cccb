package main

import (
	"fmt"
	"time"

	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"github.com/leandrodaf/midimcp/sdk/midi"
)

func main() {
	log := logger.NewZapLogger()

	client, err := midi.NewOutputClient(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.InfoLevel),
		contracts.WithDriver(contracts.DriverAuto),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI client", log.Field().Error("error", err))
		return
	}
	defer client.Stop()

	ports, err := client.ListPorts()
	if err != nil {
		log.Error("Error listing MIDI ports", log.Field().Error("error", err))
		return
	}
	fmt.Println("Available MIDI ports:", ports)

	if len(ports) > 0 {
		err = client.OpenPort(0)
	} else {
		err = client.OpenVirtualPort("Example Port")
	}
	if err != nil {
		log.Error("Failed to open MIDI port", log.Field().Error("error", err))
		return
	}

	// C major arpeggio, one note every 250ms.
	for _, note := range []byte{60, 64, 67, 72} {
		if err := client.Send(contracts.NoteOn(0, note, contracts.DefaultVelocity)); err != nil {
			log.Error("Failed to send note", log.Field().Error("error", err))
			return
		}
		time.Sleep(250 * time.Millisecond)
		if err := client.Send(contracts.NoteOff(0, note)); err != nil {
			log.Error("Failed to release note", log.Field().Error("error", err))
			return
		}
	}
	_ = client.Send(contracts.ControlChange(0, 7, 100))
}
