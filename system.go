package main

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Mass units used by the generator
const (
	SolarMass = 1.989e30 // kg
	EarthMass = 5.972e24 // kg
)

// StarType represents the classification of a star
type StarType struct {
	Class       string  `json:"class"`       // O, B, A, F, G, K, M
	Description string  `json:"description"` // Human readable description
	MassSolar   float64 `json:"mass_solar"`  // Relative to Sol
	Temperature int     `json:"temperature"` // Kelvin
	Luminosity  float64 `json:"luminosity"`  // Relative to Sol
}

// Mass returns the star mass in kilograms.
func (st StarType) Mass() float64 {
	return st.MassSolar * SolarMass
}

// StarComposition is the stellar make-up of a system
type StarComposition struct {
	Primary   StarType  `json:"primary"`
	Secondary *StarType `json:"secondary,omitempty"`
	Tertiary  *StarType `json:"tertiary,omitempty"`
	Count     int       `json:"count"`
}

// System is the simulated star system served by this host
type System struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSystem creates a system record. A nil id gets a random one.
func NewSystem(name string, id uuid.UUID) *System {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &System{ID: id, Name: name, CreatedAt: time.Now()}
}

// generateSingleStar creates a deterministic star from a seed
func generateSingleStar(seed uint64) StarType {
	roll := seed % 100000

	var st StarType

	// Distribution adjusted so rare stars still show up in small samples
	switch {
	case roll < 500: // 0.5% - O type
		st = StarType{Class: "O", Description: "Blue Supergiant",
			MassSolar: 16 + float64(seed%40), Temperature: 30000 + int(seed%20000),
			Luminosity: 30000.0 + float64(seed%20000)}
	case roll < 2500: // 2% - B type
		st = StarType{Class: "B", Description: "Blue Giant",
			MassSolar: 2.1 + float64(seed%140)/10.0, Temperature: 10000 + int(seed%10000),
			Luminosity: 25.0 + float64(seed%1000)}
	case roll < 7500: // 5% - A type
		st = StarType{Class: "A", Description: "White Star",
			MassSolar: 1.4 + float64(seed%7)/10.0, Temperature: 7500 + int(seed%2500),
			Luminosity: 5.0 + float64(seed%20)}
	case roll < 17500: // 10% - F type
		st = StarType{Class: "F", Description: "Yellow-White Star",
			MassSolar: 1.04 + float64(seed%36)/100.0, Temperature: 6000 + int(seed%1500),
			Luminosity: 1.5 + float64(seed%10)/10.0}
	case roll < 35000: // 17.5% - G type (like our Sun)
		st = StarType{Class: "G", Description: "Yellow Dwarf",
			MassSolar: 0.8 + float64(seed%24)/100.0, Temperature: 5200 + int(seed%800),
			Luminosity: 0.6 + float64(seed%10)/10.0}
	case roll < 60000: // 25% - K type
		st = StarType{Class: "K", Description: "Orange Dwarf",
			MassSolar: 0.45 + float64(seed%35)/100.0, Temperature: 3700 + int(seed%1500),
			Luminosity: 0.08 + float64(seed%50)/100.0}
	default: // 40% - M type
		st = StarType{Class: "M", Description: "Red Dwarf",
			MassSolar: 0.08 + float64(seed%37)/100.0, Temperature: 2400 + int(seed%1300),
			Luminosity: 0.001 + float64(seed%80)/1000.0}
	}

	return st
}

// GenerateStars creates a deterministic star composition from the system UUID
// Distribution:
// - Single stars: 50%
// - Binary systems: 40%
// - Trinary systems: 10%
func (s *System) GenerateStars() StarComposition {
	systemTypeRoll := s.DeterministicSeed("system_type") % 100

	primary := generateSingleStar(s.DeterministicSeed("primary_star"))
	stars := StarComposition{Primary: primary, Count: 1}

	switch {
	case systemTypeRoll < 50:
		// Just the primary
	case systemTypeRoll < 90:
		stars.Count = 2

		secondarySeed := s.DeterministicSeed("secondary_star")
		secondary := generateSingleStar(secondarySeed)
		// Companions skew small: re-roll large classes toward M/K
		if secondary.Class == "O" || secondary.Class == "B" || secondary.Class == "A" {
			secondarySeed = secondarySeed ^ 0xFFFFFFFF
			secondary = generateSingleStar(secondarySeed + 50000)
		}
		stars.Secondary = &secondary
	default:
		stars.Count = 3

		secondarySeed := s.DeterministicSeed("secondary_star")
		secondary := generateSingleStar(secondarySeed)
		tertiarySeed := s.DeterministicSeed("tertiary_star")
		tertiary := generateSingleStar(tertiarySeed + 70000)

		if secondary.Class == "O" || secondary.Class == "B" {
			secondary = generateSingleStar(secondarySeed + 50000)
		}
		if tertiary.Class == "O" || tertiary.Class == "B" || tertiary.Class == "A" {
			tertiary = generateSingleStar(tertiarySeed + 80000)
		}
		stars.Secondary = &secondary
		stars.Tertiary = &tertiary
	}

	// The primary is the heaviest by construction
	for _, companion := range []*StarType{stars.Secondary, stars.Tertiary} {
		if companion != nil && companion.MassSolar >= stars.Primary.MassSolar {
			companion.MassSolar = stars.Primary.MassSolar * 0.9
		}
	}

	return stars
}

// DeterministicSeed returns a seed value derived from the system UUID
// Any generated property can be reproduced from the UUID plus a salt
func (s *System) DeterministicSeed(salt string) uint64 {
	data := append(s.ID[:], []byte(salt)...)
	hash := sha256.Sum256(data)
	return binary.BigEndian.Uint64(hash[0:8])
}

// bodyID derives a stable body id from the system id and a salt
func (s *System) bodyID(salt string) uuid.UUID {
	return uuid.NewSHA1(s.ID, []byte(salt))
}
