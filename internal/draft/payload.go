package draft

import (
	"encoding/json"
	"mime/multipart"
	"time"
)

type Field struct {
	Name  string
	Value string
}

// Payload is the flat, ordered field set sent to the upstream on create or
// update.
type Payload struct {
	fields []Field
}

func (p *Payload) set(name, value string) {
	for i := range p.fields {
		if p.fields[i].Name == name {
			p.fields[i].Value = value
			return
		}
	}

	p.fields = append(p.fields, Field{Name: name, Value: value})
}

func (p Payload) Get(name string) (string, bool) {
	for _, f := range p.fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return "", false
}

func (p Payload) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

func (p Payload) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)

	return out
}

func (p Payload) Len() int {
	return len(p.fields)
}

// WriteMultipart writes every field as a form value. The caller closes w.
func (p Payload) WriteMultipart(w *multipart.Writer) error {
	for _, f := range p.fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return err
		}
	}

	return nil
}

// JSONBody renders the payload as a JSON object. Channel fields are sent as
// arrays and the finish date is re-rendered in ISO form; every other value
// stays a string.
func (p Payload) JSONBody() ([]byte, error) {
	obj := make(map[string]any, len(p.fields))

	for _, f := range p.fields {
		switch f.Name {
		case FieldSubscribeChannels, FieldSentChannels:
			var ids []json.RawMessage
			if err := json.Unmarshal([]byte(f.Value), &ids); err != nil {
				obj[f.Name] = f.Value
				continue
			}
			obj[f.Name] = ids
		case FieldFinishDate:
			t, err := time.Parse(time.RFC3339Nano, f.Value)
			if err != nil {
				obj[f.Name] = f.Value
				continue
			}
			obj[f.Name] = FormatFinishDate(t)
		default:
			obj[f.Name] = f.Value
		}
	}

	return json.Marshal(obj)
}
