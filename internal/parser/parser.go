// Package parser turns free-form standup replies into structured sections.
//
// The grammar is an ordered list of section markers. Parsing never fails: text
// that matches no primary marker is kept whole as the current-work section,
// and the raw input is always returned unchanged.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field identifies the report slot a marker feeds.
type Field int

const (
	FieldA     Field = iota // previous work
	FieldB                  // current work
	FieldC                  // blockers
	FieldTasks              // optional machine-readable list
)

// Marker binds a literal, case-sensitive section header to a field.
type Marker struct {
	Field   Field
	Literal string
}

// DefaultMarkers is the grammar agents are prompted with.
var DefaultMarkers = []Marker{
	{Field: FieldA, Literal: "Yesterday:"},
	{Field: FieldB, Literal: "Today:"},
	{Field: FieldC, Literal: "Blockers:"},
	{Field: FieldTasks, Literal: "Tasks:"},
}

// Report is the structured form of one reply.
type Report struct {
	SectionA string
	SectionB string
	SectionC string
	Tasks    []interface{}
	Raw      string
}

// TasksJSON returns the tasks list encoded as JSON, or nil when there are none.
func (r Report) TasksJSON() json.RawMessage {
	if len(r.Tasks) == 0 {
		return nil
	}
	b, err := json.Marshal(r.Tasks)
	if err != nil {
		return nil
	}
	return b
}

// Parser applies a marker grammar to reply text.
type Parser struct {
	markers []Marker
}

// New creates a parser for the given markers. Markers are tried in order.
func New(markers []Marker) *Parser {
	m := make([]Marker, len(markers))
	copy(m, markers)
	return &Parser{markers: m}
}

// Default returns a parser for DefaultMarkers.
func Default() *Parser {
	return New(DefaultMarkers)
}

// Parse parses text with the default grammar.
func Parse(text string) Report {
	return Default().Parse(text)
}

// Parse splits text into sections. A marker is recognized at the start of the
// text or after whitespace, so one-line replies split too. Each section runs
// up to the next marker. Parse is total: it never panics or errors.
func (p *Parser) Parse(text string) Report {
	report := Report{Raw: text}

	hits := p.scan(text)
	chunks := make(map[Field][]string)
	primaryFound := false
	for i, h := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		if body := strings.TrimSpace(text[h.end:end]); body != "" {
			chunks[h.marker.Field] = append(chunks[h.marker.Field], body)
		}
		if h.marker.Field != FieldTasks {
			primaryFound = true
		}
	}

	if primaryFound {
		report.SectionA = strings.Join(chunks[FieldA], "\n")
		report.SectionB = strings.Join(chunks[FieldB], "\n")
		report.SectionC = strings.Join(chunks[FieldC], "\n")
	} else {
		report.SectionB = text
	}
	report.Tasks = decodeTaskList(strings.Join(chunks[FieldTasks], "\n"))
	return report
}

type hit struct {
	marker     Marker
	start, end int
}

// scan returns marker occurrences in text order.
func (p *Parser) scan(text string) []hit {
	var hits []hit
	for i := 0; i < len(text); i++ {
		if i > 0 && !isSpace(text[i-1]) {
			continue
		}
		for _, m := range p.markers {
			if m.Literal != "" && strings.HasPrefix(text[i:], m.Literal) {
				hits = append(hits, hit{marker: m, start: i, end: i + len(m.Literal)})
				i += len(m.Literal) - 1
				break
			}
		}
	}
	return hits
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Render writes a report back in canonical marker form.
func (p *Parser) Render(r Report) string {
	var b strings.Builder
	for _, m := range p.markers {
		var body string
		switch m.Field {
		case FieldA:
			body = r.SectionA
		case FieldB:
			body = r.SectionB
		case FieldC:
			body = r.SectionC
		case FieldTasks:
			tasks := r.TasksJSON()
			if tasks == nil {
				continue
			}
			body = string(tasks)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Literal)
		if body != "" {
			b.WriteString(" ")
			b.WriteString(body)
		}
	}
	return b.String()
}

// Template describes the expected reply layout, one marker per line.
func (p *Parser) Template() string {
	hints := map[Field]string{
		FieldA:     "what you finished since the last standup",
		FieldB:     "what you are working on now",
		FieldC:     "anything blocking you, or none",
		FieldTasks: "optional JSON list of {title, status, owner, blocked}",
	}
	lines := make([]string, 0, len(p.markers))
	for _, m := range p.markers {
		lines = append(lines, fmt.Sprintf("%s <%s>", m.Literal, hints[m.Field]))
	}
	return strings.Join(lines, "\n")
}

func decodeTaskList(body string) []interface{} {
	body = stripFence(strings.TrimSpace(body))
	if body == "" {
		return nil
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(body), &v); err != nil {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok || len(list) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(list))
	for _, item := range list {
		out = append(out, normalize(item))
	}
	return out
}

// stripFence removes a surrounding markdown code fence.
func stripFence(body string) string {
	if !strings.HasPrefix(body, "```") {
		return body
	}
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		return ""
	}
	body = strings.TrimSpace(body)
	return strings.TrimSpace(strings.TrimSuffix(body, "```"))
}

// normalize converts YAML map keys to strings so the value is JSON encodable.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
