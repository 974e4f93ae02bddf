package template

// MessageTemplate is one entry of the fixed catalog. Patterns are parsed at
// package load, shipping a pattern that does not parse is a programming
// error caught by the catalog tests.
type MessageTemplate struct {
	Id             string
	SubjectPattern string
	HTMLPattern    string
	TextPattern    string

	// DeclaredVariables documents what the patterns expect. It is not
	// enforced at render time, substitution is tolerant by design.
	DeclaredVariables []string

	subject *Template
	html    *Template
	text    *Template
}

// Render renders subject, html and text bodies against vars.
func (m *MessageTemplate) Render(vars Vars) (subject, html, text string) {
	return m.subject.Render(vars), m.html.Render(vars), m.text.Render(vars)
}

// Lookup resolves a template id against the catalog.
func Lookup(id string) (*MessageTemplate, bool) {
	t, ok := catalog[id]
	return t, ok
}

// Catalog returns every template, for listing and for tests.
func Catalog() []*MessageTemplate {
	var all []*MessageTemplate
	for _, t := range catalog {
		all = append(all, t)
	}
	return all
}

var catalog = map[string]*MessageTemplate{}

func register(t *MessageTemplate) {
	t.subject = MustParse(t.SubjectPattern)
	t.html = MustParse(t.HTMLPattern)
	t.text = MustParse(t.TextPattern)
	catalog[t.Id] = t
}

func init() {
	register(&MessageTemplate{
		Id:             "request_received",
		SubjectPattern: "Votre demande « {{requestTitle}} » a bien été enregistrée",
		HTMLPattern: `<p>Bonjour {{clientName}},</p>
<p>Votre demande <strong>{{requestTitle}}</strong> a bien été enregistrée.
Nous vous préviendrons dès qu'un professionnel y répond.</p>
<p><a href="{{requestLink}}">Suivre ma demande</a></p>
<p style="color:#888;font-size:12px"><a href="{{unsubscribeLink}}">Gérer mes notifications</a></p>`,
		TextPattern: `Bonjour {{clientName}},

Votre demande « {{requestTitle}} » a bien été enregistrée.
Nous vous préviendrons dès qu'un professionnel y répond.

Suivre ma demande : {{requestLink}}
Gérer mes notifications : {{unsubscribeLink}}`,
		DeclaredVariables: []string{"clientName", "requestTitle", "requestLink", "unsubscribeLink"},
	})

	register(&MessageTemplate{
		Id:             "new_response",
		SubjectPattern: "{{repairerName}} a répondu à votre demande « {{requestTitle}} »",
		HTMLPattern: `<p>Bonne nouvelle,</p>
<p><strong>{{repairerName}}</strong> a répondu à votre demande <strong>{{requestTitle}}</strong>.</p>
<p><a href="{{requestLink}}">Consulter la réponse</a></p>
<p style="color:#888;font-size:12px"><a href="{{unsubscribeLink}}">Gérer mes notifications</a></p>`,
		TextPattern: `Bonne nouvelle,

{{repairerName}} a répondu à votre demande « {{requestTitle}} ».

Consulter la réponse : {{requestLink}}
Gérer mes notifications : {{unsubscribeLink}}`,
		DeclaredVariables: []string{"repairerName", "requestTitle", "requestLink", "unsubscribeLink"},
	})

	register(&MessageTemplate{
		Id:             "contact_client",
		SubjectPattern: "Coordonnées de {{repairerName}} pour « {{requestTitle}} »",
		HTMLPattern: `<p>Bonjour,</p>
<p>Voici les coordonnées de <strong>{{repairerName}}</strong> pour votre demande
<strong>{{requestTitle}}</strong> :</p>
<ul>
{{#if repairerPhone}}<li>Téléphone : {{repairerPhone}}</li>{{/if}}
{{#if repairerEmail}}<li>Email : {{repairerEmail}}</li>{{/if}}
</ul>
<p><a href="{{requestLink}}">Voir ma demande</a></p>
<p style="color:#888;font-size:12px"><a href="{{unsubscribeLink}}">Gérer mes notifications</a></p>`,
		TextPattern: `Bonjour,

Voici les coordonnées de {{repairerName}} pour votre demande « {{requestTitle}} » :
{{#if repairerPhone}}
Téléphone : {{repairerPhone}}{{/if}}{{#if repairerEmail}}
Email : {{repairerEmail}}{{/if}}

Voir ma demande : {{requestLink}}
Gérer mes notifications : {{unsubscribeLink}}`,
		DeclaredVariables: []string{"repairerName", "requestTitle", "repairerPhone", "repairerEmail", "requestLink", "unsubscribeLink"},
	})

	register(&MessageTemplate{
		Id:             "pro_new_request",
		SubjectPattern: "Nouvelle demande près de chez vous : {{requestTitle}}",
		HTMLPattern: `<p>Bonjour,</p>
<p>Une nouvelle demande correspond à votre activité{{#if city}} à <strong>{{city}}</strong>{{/if}} :
<strong>{{requestTitle}}</strong>.</p>
<p><a href="{{requestLink}}">Répondre à la demande</a></p>
<p style="color:#888;font-size:12px"><a href="{{unsubscribeLink}}">Gérer mes notifications</a></p>`,
		TextPattern: `Bonjour,

Une nouvelle demande correspond à votre activité{{#if city}} à {{city}}{{/if}} :
{{requestTitle}}

Répondre à la demande : {{requestLink}}
Gérer mes notifications : {{unsubscribeLink}}`,
		DeclaredVariables: []string{"requestTitle", "city", "requestLink", "unsubscribeLink"},
	})

	register(&MessageTemplate{
		Id:             "diagnostic",
		SubjectPattern: "[courrier] message de diagnostic {{checkedAt}}",
		HTMLPattern: `<p>Ceci est un message de diagnostic envoyé par courrier.</p>
<p>Configuration testée : {{host}}</p>
<p>Horodatage : {{checkedAt}}</p>`,
		TextPattern: `Ceci est un message de diagnostic envoyé par courrier.

Configuration testée : {{host}}
Horodatage : {{checkedAt}}`,
		DeclaredVariables: []string{"host", "checkedAt"},
	})
}
