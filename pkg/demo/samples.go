package demo

import (
	"fmt"
	"sort"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// DefaultSampleLabel is the sample selected when a session starts.
const DefaultSampleLabel = "2depth"

var defaultSamples = []models.QueryRecord{
	{TypeLabel: "2depth", Text: `query {
  countries {
    id
    name
    capitalName
  }
}`},
	{TypeLabel: "3depth", Text: `query {
  countries {
    id
    name
    cities {
      id
      name
      population
    }
  }
}`},
	{TypeLabel: "costly", Text: `query {
  countries {
    id
    name
    capitalName
    cities {
      id
      name
      population
      country_id
    }
  }
  cities {
    id
    name
    population
    country_id
  }
}`},
	{TypeLabel: "nested", Text: `query {
  countries {
    name
    cities {
      name
      country {
        name
        cities {
          name
          country {
            name
          }
        }
      }
    }
  }
}`},
	{TypeLabel: "fragment", Text: `query {
  countries {
    ...CountryFields
  }
}

fragment CountryFields on Country {
  id
  name
  capitalName
}`},
	{TypeLabel: "mutation", Text: `mutation {
  addCity(name: "Bergen", population: 285000, country_id: 1) {
    id
    name
  }
}`},
	{TypeLabel: "countryMut", Text: `mutation {
  addCountry(name: "Iceland", capitalName: "Reykjavik") {
    id
    name
  }
}`},
	{TypeLabel: "delete", Text: `mutation {
  deleteCity(name: "Bergen") {
    id
    name
  }
}`},
}

// Samples is an ordered, label-addressable set of sample queries.
type Samples struct {
	order   []string
	byLabel map[string]models.QueryRecord
}

// NewSamples returns the built-in samples with overrides applied. An
// override with a known label replaces that sample's text; a new label is
// appended.
func NewSamples(overrides ...models.QueryRecord) *Samples {
	s := &Samples{byLabel: make(map[string]models.QueryRecord)}
	for _, q := range defaultSamples {
		s.set(q)
	}
	for _, q := range overrides {
		s.set(q)
	}
	return s
}

func (s *Samples) set(q models.QueryRecord) {
	if _, ok := s.byLabel[q.TypeLabel]; !ok {
		s.order = append(s.order, q.TypeLabel)
	}
	s.byLabel[q.TypeLabel] = q
}

// Get returns the sample with label.
func (s *Samples) Get(label string) (models.QueryRecord, error) {
	q, ok := s.byLabel[label]
	if !ok {
		labels := append([]string{}, s.order...)
		sort.Strings(labels)
		return models.QueryRecord{}, fmt.Errorf("unknown sample %q (have %v)", label, labels)
	}
	return q, nil
}

// Labels returns sample labels in definition order.
func (s *Samples) Labels() []string {
	return append([]string{}, s.order...)
}
