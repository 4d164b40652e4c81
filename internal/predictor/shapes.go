package predictor

import (
	"fmt"
	"image"
	"math"
)

// Rotations is the number of hypotheses a classifier scores per image.
const Rotations = 6

// InputSize is the edge length the models expect.
var InputSize = image.Pt(52, 52)

// shape is the per-variant core behind a session predictor.
type shape interface {
	predict(img image.Image) (int, error)
}

// argmax keeps the first index with the strictly greatest score.
type argmax struct {
	best  float32
	index int
}

func newArgmax(start int) argmax {
	return argmax{best: float32(math.Inf(-1)), index: start}
}

func (a *argmax) observe(i int, score float32) {
	if score > a.best {
		a.best = score
		a.index = i
	}
}

func inputShape(size image.Point) []int64 {
	return []int64{1, 3, int64(size.Y), int64(size.X)}
}

func firstScore(out []float32) (float32, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("empty model output")
	}
	return out[0], nil
}

type classifier struct {
	sess      Session
	pre       Preprocessor
	rotations int
	size      image.Point
}

func (c *classifier) predict(img image.Image) (int, error) {
	sel := newArgmax(-1)
	for i := 0; i < c.rotations; i++ {
		data, err := c.pre.Classifier(img, i, c.size)
		if err != nil {
			return 0, err
		}
		out, err := c.sess.Run([]Tensor{{Name: InputClassifier, Shape: inputShape(c.size), Data: data}})
		if err != nil {
			return 0, err
		}
		score, err := firstScore(out)
		if err != nil {
			return 0, err
		}
		sel.observe(i, score)
	}
	return sel.index, nil
}

type pair struct {
	sess Session
	pre  Preprocessor
	size image.Point
	gray bool
}

func (p *pair) predict(img image.Image) (int, error) {
	if err := p.pre.Validate(img); err != nil {
		return 0, err
	}
	left, err := p.pre.Reference(img, p.size, p.gray)
	if err != nil {
		return 0, err
	}
	sel := newArgmax(0)
	n := p.pre.Candidates(img)
	for i := 0; i < n; i++ {
		right, err := p.pre.Candidate(img, i, p.size, p.gray)
		if err != nil {
			return 0, err
		}
		out, err := p.sess.Run([]Tensor{
			{Name: InputLeft, Shape: inputShape(p.size), Data: left},
			{Name: InputRight, Shape: inputShape(p.size), Data: right},
		})
		if err != nil {
			return 0, err
		}
		score, err := firstScore(out)
		if err != nil {
			return 0, err
		}
		sel.observe(i, score)
	}
	return sel.index, nil
}
