// Command wlanpi-mqtt-bridge runs the MQTT-to-HTTP bridge daemon.
package main

import (
	"github.com/rgnets/wlanpi-mqtt-bridge/cmd"
)

func main() {
	cmd.Execute()
}
