package model

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// GameID identifies one of the four mini-games. The zero value is not a game.
type GameID uint8

// Known games.
const (
	NumberPuzzle GameID = iota + 1
	GreenInvention
	BrokenBridge
	SpaceExplorer
)

// GameCount is the number of known games.
const GameCount = 4

// GameIDs lists every game in catalog order.
var GameIDs = [GameCount]GameID{NumberPuzzle, GreenInvention, BrokenBridge, SpaceExplorer}

var gameKeys = [...]string{
	NumberPuzzle:   "number_puzzle",
	GreenInvention: "green_invention",
	BrokenBridge:   "broken_bridge",
	SpaceExplorer:  "space_explorer",
}

var gameKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// Valid reports whether g is a known game.
func (g GameID) Valid() bool {
	return g >= NumberPuzzle && g <= SpaceExplorer
}

func (g GameID) String() string {
	if !g.Valid() {
		return fmt.Sprintf("GameID(%d)", uint8(g))
	}
	return gameKeys[g]
}

// MarshalText encodes the game key.
func (g GameID) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGame, uint8(g))
	}
	return []byte(gameKeys[g]), nil
}

// UnmarshalText decodes a game key.
func (g *GameID) UnmarshalText(b []byte) error {
	v, err := ParseGameID(string(b))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

// ParseGameID resolves a game key. Malformed keys fail with
// ErrInvalidIdentifier, well-formed keys outside the catalog with ErrUnknownGame.
func ParseGameID(s string) (GameID, error) {
	if !gameKeyPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: game id %q", ErrInvalidIdentifier, s)
	}
	for _, g := range GameIDs {
		if gameKeys[g] == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGame, s)
}

// Game describes one mini-game as listed to clients.
type Game struct {
	ID                GameID
	Name              string
	Description       string
	Domain            Domain
	RelatedDomains    []Domain
	Difficulty        int
	EstimatedDuration time.Duration
	MaxPoints         int
}

// EstimatedSeconds is EstimatedDuration in whole seconds.
func (g Game) EstimatedSeconds() int {
	return int(g.EstimatedDuration / time.Second)
}

const defaultGameDuration = 180 * time.Second

var gameInfo = [...]Game{
	NumberPuzzle: {
		ID:                NumberPuzzle,
		Name:              "Puzzle de Números",
		Description:       "Secuencias lógicas y patrones matemáticos",
		Domain:            Mathematics,
		RelatedDomains:    []Domain{Mathematics},
		Difficulty:        1,
		EstimatedDuration: defaultGameDuration,
		MaxPoints:         100,
	},
	GreenInvention: {
		ID:                GreenInvention,
		Name:              "Invento Verde",
		Description:       "Soluciones ambientales innovadoras",
		Domain:            Engineering,
		RelatedDomains:    []Domain{Engineering, Science},
		Difficulty:        1,
		EstimatedDuration: defaultGameDuration,
		MaxPoints:         100,
	},
	BrokenBridge: {
		ID:                BrokenBridge,
		Name:              "El Puente Roto",
		Description:       "Construcción y estructuras",
		Domain:            Engineering,
		RelatedDomains:    []Domain{Engineering},
		Difficulty:        1,
		EstimatedDuration: defaultGameDuration,
		MaxPoints:         100,
	},
	SpaceExplorer: {
		ID:                SpaceExplorer,
		Name:              "Exploradora Espacial",
		Description:       "Misiones espaciales técnicas",
		Domain:            Technology,
		RelatedDomains:    []Domain{Technology, Science, Engineering},
		Difficulty:        1,
		EstimatedDuration: defaultGameDuration,
		MaxPoints:         100,
	},
}

// Catalog is the immutable game list with its game to domain mapping.
// It is built once at startup and only read afterwards.
type Catalog struct {
	domains [GameCount]Domain
}

// DefaultCatalog returns the catalog with the built-in game to domain mapping.
func DefaultCatalog() *Catalog {
	c := &Catalog{}
	for _, g := range GameIDs {
		c.domains[g-1] = gameInfo[g].Domain
	}
	return c
}

// DefaultGameDomains returns the built-in mapping keyed by game key.
func DefaultGameDomains() map[string]string {
	m := make(map[string]string, GameCount)
	for _, g := range GameIDs {
		m[g.String()] = gameInfo[g].Domain.String()
	}
	return m
}

// NewCatalog builds a catalog from the defaults overridden by mapping
// (game key -> domain name). Unknown keys or domains are rejected.
func NewCatalog(mapping map[string]string) (*Catalog, error) {
	c := DefaultCatalog()

	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		g, err := ParseGameID(k)
		if err != nil {
			return nil, err
		}
		d, err := ParseDomain(mapping[k])
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", k, err)
		}
		c.domains[g-1] = d
	}
	return c, nil
}

// DomainOf returns the domain a game feeds.
func (c *Catalog) DomainOf(g GameID) (Domain, error) {
	if !g.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownGame, uint8(g))
	}
	return c.domains[g-1], nil
}

// Game returns the metadata of one game with its configured domain.
func (c *Catalog) Game(g GameID) (Game, error) {
	d, err := c.DomainOf(g)
	if err != nil {
		return Game{}, err
	}
	info := gameInfo[g]
	info.Domain = d
	info.RelatedDomains = append([]Domain(nil), info.RelatedDomains...)
	return info, nil
}

// Games returns every game in catalog order.
func (c *Catalog) Games() []Game {
	out := make([]Game, 0, GameCount)
	for _, g := range GameIDs {
		info, _ := c.Game(g)
		out = append(out, info)
	}
	return out
}
