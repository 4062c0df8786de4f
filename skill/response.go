package skill

import "github.com/wolfeidau/catso"

const plainText = "PlainText"

// SpeechResponse builds a speech reply with a Simple card echoing the speech.
// An empty reprompt is omitted.
func SpeechResponse(title, speech, reprompt string, end bool) *Response {
	return &Response{
		OutputSpeech: &OutputSpeech{Type: plainText, Text: speech},
		Card: &Card{
			Type:    SimpleCard,
			Title:   title,
			Content: speech,
		},
		Reprompt:         newReprompt(reprompt),
		ShouldEndSession: end,
	}
}

// PhotoResponse builds a speech reply with a Standard card showing pair.
func PhotoResponse(title, speech, text string, pair catso.ImagePair, reprompt string, end bool) *Response {
	return &Response{
		OutputSpeech: &OutputSpeech{Type: plainText, Text: speech},
		Card: &Card{
			Type:  StandardCard,
			Title: title,
			Text:  text,
			Image: &CardImage{
				SmallImageURL: pair.Small,
				LargeImageURL: pair.Large,
			},
		},
		Reprompt:         newReprompt(reprompt),
		ShouldEndSession: end,
	}
}

// Envelope wraps a response with session attributes. A nil resp produces an
// envelope with no response body.
func Envelope(attrs map[string]any, resp *Response) *ResponseEnvelope {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &ResponseEnvelope{
		Version:           Version,
		SessionAttributes: attrs,
		Response:          resp,
	}
}

func newReprompt(text string) *Reprompt {
	if text == "" {
		return nil
	}
	return &Reprompt{OutputSpeech: OutputSpeech{Type: plainText, Text: text}}
}
