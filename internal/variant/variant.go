// Package variant defines the closed set of challenge variants served by fcsrv.
//
// Each Variant is a small integer with a stable ordinal so it can index dense
// arrays (see internal/registry). The table below is the single source of truth
// for wire names, model artifacts and predictor shapes.
package variant

import (
	"errors"
	"fmt"
)

// Variant identifies one challenge type.
type Variant int

const (
	RollballAnimals Variant = iota
	RollballObjects
	RollballAnimalsMulti
	Coordinatesmatch
	HopscotchHighsec
	TrainCoordinates
	Penguin
	Shadows
	BrokenJigsawSwap
	Frankenhead
	Counting
	Card
	Rockstack
	Cardistance
	PenguinsIcon
	KnotsCrossesCircle
	HandNumberPuzzle
	Dicematch
	Numericalmatch
	Conveyor
	Unbentobjects
	LumberLengthGame
	Diceico
	OrbitMatchGame
	DicePair
	Maze2

	// Count is the number of variants. It must stay last.
	Count int = iota
)

// Shape selects how a predictor turns one image into one answer.
type Shape int

const (
	// Classifier scores a fixed number of rotations of the image.
	Classifier Shape = iota
	// Pair compares a reference crop against candidate crops of a strip.
	Pair
)

func (s Shape) String() string {
	switch s {
	case Classifier:
		return "classifier"
	case Pair:
		return "pair"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

type entry struct {
	name      string
	artifact  string
	shape     Shape
	grayscale bool
}

var table = [Count]entry{
	RollballAnimals:      {"3d_rollball_animals", "3d_rollball_objects.onnx", Pair, false},
	RollballObjects:      {"3d_rollball_objects", "3d_rollball_objects.onnx", Pair, false},
	RollballAnimalsMulti: {"3d_rollball_animals_multi", "3d_rollball_animals_multi.onnx", Pair, false},
	Coordinatesmatch:     {"coordinatesmatch", "coordinatesmatch.onnx", Pair, false},
	HopscotchHighsec:     {"hopscotch_highsec", "hopscotch_highsec.onnx", Pair, false},
	TrainCoordinates:     {"train_coordinates", "train_coordinates.onnx", Pair, false},
	Penguin:              {"penguin", "penguin.onnx", Classifier, false},
	Shadows:              {"shadows", "shadows.onnx", Classifier, false},
	BrokenJigsawSwap:     {"BrokenJigsawbrokenjigsaw_swap", "BrokenJigsawbrokenjigsaw_swap.onnx", Pair, false},
	Frankenhead:          {"frankenhead", "frankenhead.onnx", Classifier, false},
	Counting:             {"counting", "counting.onnx", Classifier, false},
	Card:                 {"card", "card.onnx", Classifier, false},
	Rockstack:            {"rockstack", "rockstack_v2.onnx", Pair, true},
	Cardistance:          {"cardistance", "cardistance.onnx", Pair, false},
	PenguinsIcon:         {"penguins-icon", "penguins-icon.onnx", Classifier, false},
	KnotsCrossesCircle:   {"knotsCrossesCircle", "knotsCrossesCircle.onnx", Classifier, false},
	HandNumberPuzzle:     {"hand_number_puzzle", "hand_number_puzzle.onnx", Classifier, false},
	Dicematch:            {"dicematch", "dicematch.onnx", Classifier, false},
	Numericalmatch:       {"numericalmatch", "numericalmatch.onnx", Pair, false},
	Conveyor:             {"conveyor", "conveyor.onnx", Pair, false},
	// unbentobjects shares the knotsCrossesCircle weights.
	Unbentobjects:    {"unbentobjects", "knotsCrossesCircle.onnx", Classifier, false},
	LumberLengthGame: {"lumber-length-game", "lumber-length-game.onnx", Classifier, false},
	Diceico:          {"diceico", "diceico.onnx", Pair, false},
	OrbitMatchGame:   {"orbit_match_game", "orbit_match_game.onnx", Pair, false},
	DicePair:         {"dice_pair", "dice_pair.onnx", Classifier, false},
	Maze2:            {"maze2", "maze2.onnx", Classifier, false},
}

var byName = func() map[string]Variant {
	m := make(map[string]Variant, Count)
	for i, s := range table {
		m[s.name] = Variant(i)
	}
	return m
}()

// ErrUnknownVariant is returned by Parse for names outside the table.
var ErrUnknownVariant = errors.New("unknown variant type")

// Parse resolves a wire name to a Variant.
func Parse(name string) (Variant, error) {
	if v, ok := byName[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
}

// IsUnknown reports whether err came from Parse rejecting a name.
func IsUnknown(err error) bool { return errors.Is(err, ErrUnknownVariant) }

// All returns every variant in ordinal order.
func All() []Variant {
	out := make([]Variant, Count)
	for i := range out {
		out[i] = Variant(i)
	}
	return out
}

// Valid reports whether v is inside the table.
func (v Variant) Valid() bool { return v >= 0 && int(v) < Count }

// Ordinal returns the dense index of v.
func (v Variant) Ordinal() int { return int(v) }

func (v Variant) String() string {
	if !v.Valid() {
		return fmt.Sprintf("variant(%d)", int(v))
	}
	return table[v].name
}

// Artifact returns the model file name backing v.
func (v Variant) Artifact() string { return table[v].artifact }

// Shape returns the predictor shape of v.
func (v Variant) Shape() Shape { return table[v].shape }

// Grayscale reports whether pair crops of v are converted to grayscale.
func (v Variant) Grayscale() bool { return table[v].grayscale }
