package viera

import "time"

// Key events understood by the Viera network control service
const (
	KeyPower      KeyEvent = "NRC_POWER-ONOFF"
	KeyVolumeUp   KeyEvent = "NRC_VOLUP-ONOFF"
	KeyVolumeDown KeyEvent = "NRC_VOLDOWN-ONOFF"
	KeyMute       KeyEvent = "NRC_MUTE-ONOFF"
)

// Control endpoint of the television
const (
	ControlPort = 55000
	ControlPath = "/nrc/control_0"
)

// SOAP headers for X_SendKey requests
const (
	ContentTypeXML = `text/xml; charset="utf-8"`
	SOAPActionKey  = `"urn:panasonic-com:service:p00NetworkControl:1#X_SendKey"`
	AcceptXML      = "text/xml"

	headerSOAPAction = "SOAPACTION"
)

// Default deadlines for status probes and key commands
const (
	DefaultProbeTimeout   = 1000 * time.Millisecond
	DefaultCommandTimeout = 2000 * time.Millisecond
)

// Manufacturer reported for every Viera device
const Manufacturer = "Panasonic"
