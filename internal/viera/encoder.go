package viera

import (
	"fmt"
	"net/http"
	"strconv"
)

// sendKeyEnvelope is the X_SendKey SOAP body. The only substitution is the key
// event, which comes from the closed KeyEvent set and needs no XML escaping.
// Escaping must be added if key events ever become caller supplied.
const sendKeyEnvelope = "<?xml version='1.0' encoding='utf-8'?> " +
	"<s:Envelope xmlns:s='http://schemas.xmlsoap.org/soap/envelope/' s:encodingStyle='http://schemas.xmlsoap.org/soap/encoding/'> " +
	" <s:Body> " +
	"   <u:X_SendKey xmlns:u='urn:panasonic-com:service:p00NetworkControl:1'> " +
	"     <X_KeyEvent>%s</X_KeyEvent> " +
	"   </u:X_SendKey> " +
	" </s:Body> " +
	"</s:Envelope>"

// Encode builds the POST request that presses the button for cmd
func Encode(cmd Command) Request {
	body := []byte(fmt.Sprintf(sendKeyEnvelope, cmd.KeyEvent()))

	header := http.Header{}
	header.Set("Content-Length", strconv.Itoa(len(body)))
	header.Set("Content-Type", ContentTypeXML)
	header.Set("Accept", AcceptXML)
	// sent verbatim, not canonicalized to "Soapaction"
	header[headerSOAPAction] = []string{SOAPActionKey}

	return Request{
		Method: http.MethodPost,
		Path:   ControlPath,
		Header: header,
		Body:   body,
	}
}

// ProbeRequest builds the bodiless GET used to check whether the television is on
func ProbeRequest() Request {
	return Request{
		Method: http.MethodGet,
		Path:   ControlPath,
		Header: http.Header{},
	}
}
