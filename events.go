package courrier

import (
	"github.com/ouvrio/courrier/template"
)

// Event is one thing that happened in the marketplace which warrants a
// notification. Each event kind knows which template it renders with and
// exactly which variables that template needs, so the page layer never
// hands the dispatcher a loosely shaped bag of strings.
type Event interface {
	Kind() string
	TemplateId() string
	Recipient() string
	// Ref is an opaque id linking back to the triggering entity, typically
	// a request id. It ends up on the dispatch record as source_event_ref.
	Ref() string
	Variables() template.Vars
}

// RequestReceived confirms to a client that their repair request was created.
type RequestReceived struct {
	RequestId    string
	ClientName   string
	ClientEmail  string
	RequestTitle string
}

func (e RequestReceived) Kind() string       { return "request_received" }
func (e RequestReceived) TemplateId() string { return "request_received" }
func (e RequestReceived) Recipient() string  { return e.ClientEmail }
func (e RequestReceived) Ref() string        { return e.RequestId }
func (e RequestReceived) Variables() template.Vars {
	return template.Vars{
		"clientName":   e.ClientName,
		"requestTitle": e.RequestTitle,
	}
}

// ProfessionalReplied tells a client that a professional responded to
// their request.
type ProfessionalReplied struct {
	RequestId    string
	ClientEmail  string
	RequestTitle string
	RepairerName string
}

func (e ProfessionalReplied) Kind() string       { return "professional_replied" }
func (e ProfessionalReplied) TemplateId() string { return "new_response" }
func (e ProfessionalReplied) Recipient() string  { return e.ClientEmail }
func (e ProfessionalReplied) Ref() string        { return e.RequestId }
func (e ProfessionalReplied) Variables() template.Vars {
	return template.Vars{
		"requestTitle": e.RequestTitle,
		"repairerName": e.RepairerName,
	}
}

// ContactShared gives a client the direct contact details of a professional
// once both sides agreed. RepairerPhone may be empty, the template hides the
// phone line in that case.
type ContactShared struct {
	RequestId     string
	ClientEmail   string
	RequestTitle  string
	RepairerName  string
	RepairerPhone string
	RepairerEmail string
}

func (e ContactShared) Kind() string       { return "contact_shared" }
func (e ContactShared) TemplateId() string { return "contact_client" }
func (e ContactShared) Recipient() string  { return e.ClientEmail }
func (e ContactShared) Ref() string        { return e.RequestId }
func (e ContactShared) Variables() template.Vars {
	return template.Vars{
		"requestTitle":  e.RequestTitle,
		"repairerName":  e.RepairerName,
		"repairerPhone": e.RepairerPhone,
		"repairerEmail": e.RepairerEmail,
	}
}

// RequestMatched notifies a professional that a new request in their trade
// and area is open for responses.
type RequestMatched struct {
	RequestId     string
	RepairerEmail string
	RequestTitle  string
	City          string
}

func (e RequestMatched) Kind() string       { return "request_matched" }
func (e RequestMatched) TemplateId() string { return "pro_new_request" }
func (e RequestMatched) Recipient() string  { return e.RepairerEmail }
func (e RequestMatched) Ref() string        { return e.RequestId }
func (e RequestMatched) Variables() template.Vars {
	return template.Vars{
		"requestTitle": e.RequestTitle,
		"city":         e.City,
	}
}
