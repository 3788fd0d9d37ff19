package core

import "strings"

// Attribute is one structured fact attached to a notification, e.g. "Invoice #: 123"
type Attribute struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Notification is an abstract message handed to a notifier
type Notification struct {
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// IsValid checks if the notification has something to deliver
func (n Notification) IsValid() bool {
	return n.Title != "" || n.Message != ""
}

// Settings is a string-keyed settings map owned by the host.
// Notifiers treat it as read-only input.
type Settings map[string]string

// Get returns the trimmed value for key, or "" when absent
func (s Settings) Get(key string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s[key])
}

// FieldKind describes how a settings field is edited
type FieldKind string

const (
	FieldPassword FieldKind = "password"
	FieldText     FieldKind = "text"
	FieldDynamic  FieldKind = "dynamic"
)

// Field declares one externally-editable setting
type Field struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Description string    `json:"description"`
	Required    bool      `json:"required,omitempty"`
}

// Schema is an ordered list of settings fields
type Schema []Field

// Keys returns the field keys in declaration order
func (s Schema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// Lookup finds a field by key
func (s Schema) Lookup(key string) (Field, bool) {
	for _, f := range s {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Option is one selectable value of a dynamic field
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChoiceSeparator splits the value and label of a composite setting
const ChoiceSeparator = "|"

// Choice is a composite "value|label" setting as stored by a settings UI.
// Only Value carries meaning.
type Choice struct {
	Value string
	Label string
}

// ParseChoice decodes a composite setting. Without a separator the whole
// string is the value.
func ParseChoice(s string) Choice {
	value, label, _ := strings.Cut(s, ChoiceSeparator)
	return Choice{Value: strings.TrimSpace(value), Label: strings.TrimSpace(label)}
}

// IsZero reports whether no value was chosen
func (c Choice) IsZero() bool {
	return c.Value == ""
}

// ConnectionStatus is the outcome of a credential check
type ConnectionStatus string

const (
	ConnectionUntested ConnectionStatus = "untested"
	ConnectionOK       ConnectionStatus = "ok"
	ConnectionFailed   ConnectionStatus = "failed"
)

// ConnectionResult reports a connectivity check. Untested means the
// provider cannot verify credentials in isolation; it is not a pass.
type ConnectionResult struct {
	Status ConnectionStatus `json:"status"`
	Detail string           `json:"detail,omitempty"`
}
