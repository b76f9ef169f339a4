// Package planet maps a dominant domain to its themed planet.
package planet

import (
	"fmt"

	"github.com/okian/affinity/internal/domain/model"
)

// Recommendation is the static content bundle of one planet.
type Recommendation struct {
	Domain      model.Domain
	Name        string
	Description string
	Color       string
	Icon        string
	// Careers keeps its configured order.
	Careers []string
}

var planets = [...]Recommendation{
	model.Mathematics: {
		Domain:      model.Mathematics,
		Name:        "Planeta Alfa",
		Description: "Mundo de patrones numéricos y lógica pura",
		Color:       "stem-math",
		Icon:        "🔢",
		Careers:     []string{"Matemática", "Estadística", "Actuaría", "Investigación Operativa"},
	},
	model.Science: {
		Domain:      model.Science,
		Name:        "Planeta Delta",
		Description: "Reino de la investigación y el descubrimiento",
		Color:       "stem-science",
		Icon:        "🔬",
		Careers:     []string{"Física", "Química", "Biología", "Astronomía", "Medicina"},
	},
	model.Technology: {
		Domain:      model.Technology,
		Name:        "Planeta Sigma",
		Description: "Esfera de la innovación digital y sistemas",
		Color:       "stem-tech",
		Icon:        "💻",
		Careers:     []string{"Ingeniería en Sistemas", "Ciencia de Datos", "Inteligencia Artificial", "Ciberseguridad"},
	},
	model.Engineering: {
		Domain:      model.Engineering,
		Name:        "Planeta Kappa",
		Description: "Dominio de la creación y construcción",
		Color:       "stem-engineering",
		Icon:        "⚙️",
		Careers:     []string{"Ingeniería Civil", "Ingeniería Mecánica", "Ingeniería Eléctrica", "Ingeniería Industrial"},
	},
}

// Recommend returns the planet of d. The zero Domain means "no dominant
// domain" and yields nil without error; any other value outside the four
// domains fails with model.ErrUnknownDomain.
func Recommend(d model.Domain) (*Recommendation, error) {
	if d == 0 {
		return nil, nil
	}
	if !d.Valid() {
		return nil, fmt.Errorf("recommend: %w: %d", model.ErrUnknownDomain, uint8(d))
	}
	p := planets[d]
	p.Careers = append([]string(nil), p.Careers...)
	return &p, nil
}

// RecommendName resolves a domain name first. An empty name is "no dominant
// domain"; an unrecognized one is never defaulted.
func RecommendName(name string) (*Recommendation, error) {
	if name == "" {
		return nil, nil
	}
	d, err := model.ParseDomain(name)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return Recommend(d)
}

// All returns every planet in canonical domain order.
func All() []Recommendation {
	out := make([]Recommendation, 0, model.DomainCount)
	for _, d := range model.Domains {
		p, _ := Recommend(d)
		out = append(out, *p)
	}
	return out
}
