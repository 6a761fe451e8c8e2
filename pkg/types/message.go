// Package types defines the messages exchanged between the page agent, the
// coordinator and the popup, and the request/result values they carry.
package types

import "github.com/google/uuid"

// PortName is the name of the persistent connection between a page agent and
// the coordinator. Ports opened under any other name are not served.
const PortName = "translation-port"

// Action identifies the kind of message carried by either transport.
type Action string

const (
	ActionTranslate       Action = "translate"       // ActionTranslate asks the coordinator for a translation.
	ActionShowTranslation Action = "showTranslation" // ActionShowTranslation carries a translation result back.
)

// Message is the wire envelope shared by the persistent port and the broadcast
// bus. Fields not relevant to an action are omitted when encoded.
type Message struct {
	// ID correlates a reply with the request it answers. The coordinator echoes
	// it unchanged; listeners are free to ignore it.
	ID string `json:"id,omitempty"`

	// Action indicates what the message asks for or delivers.
	Action Action `json:"action"`

	// Text is the source text of a translate request.
	Text string `json:"text,omitempty"`

	// SourceLang and TargetLang are only set by the popup.
	SourceLang Language `json:"sourceLang,omitempty"`
	TargetLang Language `json:"targetLang,omitempty"`

	// Translation is the translated text of a successful result.
	Translation string `json:"translation,omitempty"`

	// Success reports whether the result is usable. Only meaningful for
	// showTranslation messages.
	Success bool `json:"success,omitempty"`

	// Error is the failure reason of an unsuccessful result.
	Error string `json:"message,omitempty"`
}

// NewTranslateMessage creates the page agent's translate request. Languages
// are left implicit so the coordinator picks the detect-and-translate prompt.
func NewTranslateMessage(text string) *Message {
	return &Message{
		ID:     uuid.New().String(),
		Action: ActionTranslate,
		Text:   text,
	}
}

// NewPopupTranslateMessage creates the popup's translate request with
// explicit languages.
func NewPopupTranslateMessage(req TranslationRequest) *Message {
	return &Message{
		ID:         uuid.New().String(),
		Action:     ActionTranslate,
		Text:       req.Text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	}
}

// NewShowTranslationMessage creates the coordinator's reply to the request
// with the given id. A failed result never carries a translation.
func NewShowTranslationMessage(id string, result TranslationResult) *Message {
	msg := &Message{
		ID:      id,
		Action:  ActionShowTranslation,
		Success: result.Success,
	}
	if result.Success {
		msg.Translation = result.Translation
	} else {
		msg.Error = result.Message
	}
	return msg
}

// IsTranslate returns true if this is a translate request.
func (m *Message) IsTranslate() bool {
	return m != nil && m.Action == ActionTranslate
}

// IsShowTranslation returns true if this is a translation result.
func (m *Message) IsShowTranslation() bool {
	return m != nil && m.Action == ActionShowTranslation
}

// Request extracts the translation request carried by a translate message.
func (m *Message) Request() TranslationRequest {
	return TranslationRequest{
		Text:       m.Text,
		SourceLang: m.SourceLang,
		TargetLang: m.TargetLang,
	}
}

// Result extracts the translation result carried by a showTranslation message.
// The cause of a failure does not survive the wire.
func (m *Message) Result() TranslationResult {
	if m.Success {
		return NewSuccessResult(m.Translation)
	}
	return TranslationResult{Message: m.Error}
}
