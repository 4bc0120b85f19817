package slack

// Message is the JSON payload posted to a response_url. Zero-valued optional
// fields are omitted so that plain text messages stay minimal.
type Message struct {
	Text            string       `json:"text,omitempty"`
	Mrkdwn          bool         `json:"mrkdwn,omitempty"`
	ResponseType    string       `json:"response_type,omitempty"`
	ReplaceOriginal bool         `json:"replace_original,omitempty"`
	DeleteOriginal  bool         `json:"delete_original,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// ResponseEphemeral makes a reply visible only to the invoking user, which
// is also Slack's default for slash-command responses.
const ResponseEphemeral = "ephemeral"

type Attachment struct {
	Text       string   `json:"text,omitempty"`
	Color      string   `json:"color,omitempty"`
	CallbackID string   `json:"callback_id,omitempty"`
	MrkdwnIn   []string `json:"mrkdwn_in,omitempty"`
	Actions    []Button `json:"actions,omitempty"`
}

// Button is an interactive message action. Value is round-tripped back to us
// in the button callback's actions list and drives response-job routing.
type Button struct {
	Name    string   `json:"name"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Value   string   `json:"value,omitempty"`
	Style   string   `json:"style,omitempty"`
	URL     string   `json:"url,omitempty"`
	Confirm *Confirm `json:"confirm,omitempty"`
}

// Button styles.
const (
	StylePrimary = "primary"
	StyleDanger  = "danger"
)

// Confirm renders a confirmation dialog before the button's action fires.
type Confirm struct {
	Title       string `json:"title,omitempty"`
	Text        string `json:"text,omitempty"`
	OKText      string `json:"ok_text,omitempty"`
	DismissText string `json:"dismiss_text,omitempty"`
}

// NewButton returns a plain button whose value doubles as its action name.
func NewButton(value, text string) Button {
	return Button{Name: value, Text: text, Type: "button", Value: value}
}

// TextMessage wraps plain markdown text, optionally with attachment text,
// mirroring the shape of a basic slash-command reply.
func TextMessage(text string, attachments ...string) Message {
	msg := Message{Text: text, Mrkdwn: true}
	for _, a := range attachments {
		if a == "" {
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Text:     a,
			MrkdwnIn: []string{"text"},
		})
	}
	return msg
}
