package courrier

import (
	"fmt"
	"net/mail"
)

// Message is a fully rendered email, ready to be handed to a transport
// provider. Subject, HTML and Text have already been through the template
// engine, no placeholders remain.
type Message struct {
	From    Address `json:"from"`
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	HTML    string  `json:"html"`
	Text    string  `json:"text"`
}

type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func AddressOf(email string) Address {
	return Address{Email: email}
}

func (a Address) String() string {
	if len(a.Name) == 0 {
		return a.Email
	}
	return fmt.Sprintf("\"%s\" <%s>", a.Name, a.Email)
}

func (a Address) Valid() error {
	_, err := mail.ParseAddress(a.Email)
	if err != nil {
		return fmt.Errorf("%s is not a valid email address", a.Email)
	}
	return nil
}

// DispatchResult is what a caller gets back from one dispatch attempt.
// Success false with a MessageId means the attempt was recorded and failed,
// Success false without one means nothing was attempted.
type DispatchResult struct {
	Success     bool   `json:"success"`
	MessageId   string `json:"message_id,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}
