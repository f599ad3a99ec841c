package notify

// Wire types for the chat platform's message API. Only the fields this
// service sends or reads back are modeled.

// Message is an outbound channel message.
type Message struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// Embed is a rich content block attached to a message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is a labeled value inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedImage references an image by URL.
type EmbedImage struct {
	URL string `json:"url,omitempty"`
}

// EmbedFooter is the small print under an embed.
type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// Component is an action row holding up to five buttons.
type Component struct {
	Type       int      `json:"type"`
	Components []Button `json:"components,omitempty"`
}

// Button is a clickable component whose CustomID round-trips through the
// interaction endpoint.
type Button struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Component and button type discriminators defined by the chat platform.
const (
	componentTypeActionRow = 1
	componentTypeButton    = 2
)

// Button styles defined by the chat platform.
const (
	styleSecondary = 2
	styleSuccess   = 3
	styleDanger    = 4
)

// Embed accent colors, one per notification family.
const (
	colorLower    = 0x2ECC71
	colorRaise    = 0xE67E22
	colorBundle   = 0x9B59B6
	colorStock    = 0xE74C3C
	colorNotice   = 0x95A5A6
	colorResolved = 0x546E7A
)

// actionRow wraps buttons in a single action row component.
func actionRow(buttons ...Button) []Component {
	if len(buttons) == 0 {
		return nil
	}
	return []Component{{Type: componentTypeActionRow, Components: buttons}}
}

// button builds a button component with the given style, label, and
// callback identity.
func button(style int, label string, kind ActionKind, id string) Button {
	return Button{
		Type:     componentTypeButton,
		Style:    style,
		Label:    label,
		CustomID: EncodeCallback(kind, id),
	}
}
