// Package model contains domain models passed between layers.
package model

import "fmt"

// Domain is one of the four fixed STEM domains. The zero value is not a domain.
type Domain uint8

// The four domains, declared in canonical order. The order doubles as the
// tie-break priority when two domains share the top score.
const (
	Mathematics Domain = iota + 1
	Science
	Technology
	Engineering
)

// DomainCount is the number of domains.
const DomainCount = 4

// Domains lists every domain in canonical order.
var Domains = [DomainCount]Domain{Mathematics, Science, Technology, Engineering}

var domainNames = [...]string{
	Mathematics: "mathematics",
	Science:     "science",
	Technology:  "technology",
	Engineering: "engineering",
}

// Valid reports whether d is one of the four domains.
func (d Domain) Valid() bool {
	return d >= Mathematics && d <= Engineering
}

// Index returns the position of d in Domains. d must be valid.
func (d Domain) Index() int {
	return int(d) - 1
}

func (d Domain) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Domain(%d)", uint8(d))
	}
	return domainNames[d]
}

// MarshalText encodes the canonical name.
func (d Domain) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDomain, uint8(d))
	}
	return []byte(domainNames[d]), nil
}

// UnmarshalText decodes a canonical name.
func (d *Domain) UnmarshalText(b []byte) error {
	v, err := ParseDomain(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseDomain maps a canonical domain name to its Domain. Only the exact
// lowercase English names are accepted.
func ParseDomain(s string) (Domain, error) {
	for _, d := range Domains {
		if domainNames[d] == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDomain, s)
}

// DomainScores holds one integer score per domain. Field order matches the
// canonical domain order so encoded output is stable.
type DomainScores struct {
	Mathematics int `json:"mathematics"`
	Science     int `json:"science"`
	Technology  int `json:"technology"`
	Engineering int `json:"engineering"`
}

// Get returns the score for d; invalid domains read as 0.
func (s DomainScores) Get(d Domain) int {
	switch d {
	case Mathematics:
		return s.Mathematics
	case Science:
		return s.Science
	case Technology:
		return s.Technology
	case Engineering:
		return s.Engineering
	default:
		return 0
	}
}

// Set stores v for d; invalid domains are ignored.
func (s *DomainScores) Set(d Domain, v int) {
	switch d {
	case Mathematics:
		s.Mathematics = v
	case Science:
		s.Science = v
	case Technology:
		s.Technology = v
	case Engineering:
		s.Engineering = v
	}
}
