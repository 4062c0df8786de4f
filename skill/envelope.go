// Package skill handles voice-assistant skill events: it decodes the request
// envelope, routes by request type and intent, and builds response envelopes.
package skill

import "encoding/json"

// Request types sent by the voice service.
const (
	LaunchRequest       = "LaunchRequest"
	IntentRequest       = "IntentRequest"
	SessionEndedRequest = "SessionEndedRequest"
)

// Built-in intent names.
const (
	HelpIntent   = "AMAZON.HelpIntent"
	StopIntent   = "AMAZON.StopIntent"
	CancelIntent = "AMAZON.CancelIntent"
)

// Version is the response envelope version.
const Version = "1.0"

// RequestEnvelope is an inbound skill event.
type RequestEnvelope struct {
	Version string          `json:"version"`
	Session Session         `json:"session"`
	Request Request         `json:"request"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Session describes the conversation the request belongs to.
type Session struct {
	New         bool           `json:"new"`
	SessionID   string         `json:"sessionId"`
	Application Application    `json:"application"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Application identifies the skill the event was sent to.
type Application struct {
	ApplicationID string `json:"applicationId"`
}

// Request is the typed body of a skill event.
type Request struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	Timestamp string  `json:"timestamp,omitempty"`
	Locale    string  `json:"locale,omitempty"`
	Intent    *Intent `json:"intent,omitempty"`

	// Reason is set on SessionEndedRequest.
	Reason string `json:"reason,omitempty"`
}

// IntentName returns the intent name, or "" when the request carries none.
func (r Request) IntentName() string {
	if r.Intent == nil {
		return ""
	}
	return r.Intent.Name
}

// Intent is the resolved user intent of an IntentRequest.
type Intent struct {
	Name  string          `json:"name"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// Slot is a named intent argument.
type Slot struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// ResponseEnvelope is the reply to a skill event.
type ResponseEnvelope struct {
	Version           string         `json:"version"`
	SessionAttributes map[string]any `json:"sessionAttributes"`
	Response          *Response      `json:"response,omitempty"`
}

// Response is the speech, card and session control of a reply.
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

// OutputSpeech is text spoken to the user.
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Card types shown in the companion app.
const (
	SimpleCard   = "Simple"
	StandardCard = "Standard"
)

// Card is a companion-app card. Simple cards use Content; Standard cards use
// Text and Image.
type Card struct {
	Type    string     `json:"type"`
	Title   string     `json:"title"`
	Content string     `json:"content,omitempty"`
	Text    string     `json:"text,omitempty"`
	Image   *CardImage `json:"image,omitempty"`
}

// CardImage holds the image URLs of a Standard card.
type CardImage struct {
	SmallImageURL string `json:"smallImageUrl"`
	LargeImageURL string `json:"largeImageUrl"`
}

// Reprompt is spoken when the user does not answer.
type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}
