// Package words holds the built-in vocabulary and draws the word choices
// offered to a clue-giver at the start of each round.
package words

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jason-s-yu/wordclue/internal/models"
)

// MinClues and MaxClues bound the number of clues a word may require.
const (
	MinClues = 1
	MaxClues = 5
)

var wordList = []string{
	"pomme", "maison", "voiture", "soleil", "lune", "montagne", "rivière",
	"chocolat", "guitare", "éléphant", "ordinateur", "bibliothèque", "fromage",
	"parapluie", "château", "dragon", "pirate", "vélo", "avion", "bateau",
	"forêt", "plage", "neige", "horloge", "téléphone", "cinéma", "musée",
	"jardin", "papillon", "tortue", "baleine", "volcan", "désert", "étoile",
	"fusée", "robot", "sorcière", "chevalier", "princesse", "boulanger",
	"croissant", "baguette", "crêpe", "camembert", "tour", "pont", "train",
	"métro", "école", "hôpital", "pompier", "médecin", "cuisine", "lampe",
	"miroir", "clé", "trésor", "carte", "boussole", "phare", "île", "cactus",
	"tempête", "arc-en-ciel", "nuage", "orage", "violon", "piano", "tambour",
	"football", "tennis", "ski", "natation", "marathon", "échecs", "cirque",
	"clown", "magicien", "fantôme", "vampire", "momie", "zèbre", "girafe",
	"kangourou", "pingouin", "hibou", "abeille", "fourmi", "escargot",
}

// Source produces the two word choices for a new round.
type Source interface {
	Choices() []models.WordChoice
}

// Generator draws choices from the built-in list. It is safe for concurrent use.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	words []string
	malus float64
}

// NewGenerator returns a Generator seeded with seed (0 picks a time-based seed)
// that grants the malus perk with probability malusProbability.
func NewGenerator(seed int64, malusProbability float64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		words: wordList,
		malus: malusProbability,
	}
}

// Words returns a copy of the vocabulary.
func (g *Generator) Words() []string {
	return append([]string(nil), g.words...)
}

// Choices returns two distinct words with distinct required clue counts.
// At most one of them carries the malus perk.
func (g *Generator) Choices() []models.WordChoice {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := g.rng.Perm(len(g.words))[:2]
	counts := g.rng.Perm(MaxClues - MinClues + 1)[:2]

	choices := []models.WordChoice{
		{Word: g.words[idx[0]], RequiredClues: counts[0] + MinClues},
		{Word: g.words[idx[1]], RequiredClues: counts[1] + MinClues},
	}
	if g.rng.Float64() < g.malus {
		choices[g.rng.Intn(len(choices))].CanMalus = true
	}
	return choices
}
