package exposition

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/lessonloop/internal/lesson"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrUnknownLesson is returned for a reference outside the catalog.
var ErrUnknownLesson = errors.New("unknown lesson")

// Catalog is the set of syllabi learners can work through.
type Catalog struct {
	Syllabi []Syllabus `yaml:"syllabi"`
}

// Syllabus is an ordered list of modules. Topic and Level are defaults for
// its lessons.
type Syllabus struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Topic   string   `yaml:"topic"`
	Level   string   `yaml:"level"`
	Modules []Module `yaml:"modules"`
}

// Module groups lessons.
type Module struct {
	Title   string  `yaml:"title"`
	Lessons []Entry `yaml:"lessons"`
}

// Entry is one lesson. Without a Body the text is generated on first use.
type Entry struct {
	Title string `yaml:"title"`
	Topic string `yaml:"topic,omitempty"`
	Level string `yaml:"level,omitempty"`
	Body  string `yaml:"body,omitempty"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog file, or returns the built-in one when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and checks a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that syllabus ids are unique and every lesson has a
// title and a topic.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)
	for _, s := range c.Syllabi {
		if s.ID == "" {
			return fmt.Errorf("catalog: syllabus %q has no id", s.Title)
		}
		if seen[s.ID] {
			return fmt.Errorf("catalog: duplicate syllabus id %q", s.ID)
		}
		seen[s.ID] = true
		for mi, m := range s.Modules {
			for li, l := range m.Lessons {
				if l.Title == "" {
					return fmt.Errorf("catalog: %s/%d/%d has no title", s.ID, mi, li)
				}
				if l.Topic == "" && s.Topic == "" {
					return fmt.Errorf("catalog: %s/%d/%d has no topic", s.ID, mi, li)
				}
			}
		}
	}
	return nil
}

// Lookup resolves ref to its lesson, with syllabus defaults applied.
func (c *Catalog) Lookup(ref lesson.Ref) (lesson.Exposition, error) {
	for _, s := range c.Syllabi {
		if s.ID != ref.SyllabusID {
			continue
		}
		if ref.ModuleIndex < 0 || ref.ModuleIndex >= len(s.Modules) {
			break
		}
		m := s.Modules[ref.ModuleIndex]
		if ref.LessonIndex < 0 || ref.LessonIndex >= len(m.Lessons) {
			break
		}
		l := m.Lessons[ref.LessonIndex]
		e := lesson.Exposition{
			Topic:       l.Topic,
			Level:       l.Level,
			ModuleTitle: m.Title,
			LessonTitle: l.Title,
			Body:        l.Body,
		}
		if e.Topic == "" {
			e.Topic = s.Topic
		}
		if e.Level == "" {
			e.Level = s.Level
		}
		if e.Level == "" {
			e.Level = lesson.LevelBeginner
		}
		return e, nil
	}
	return lesson.Exposition{}, fmt.Errorf("%w: %s", ErrUnknownLesson, ref)
}
