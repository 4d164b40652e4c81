package predictor

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Preprocessor turns regions of a challenge image into model inputs. Every
// method returns a 3 channel CHW tensor of size.X by size.Y with values in [0,1].
type Preprocessor interface {
	// Classifier returns the index-th hypothesis of a classifier image.
	Classifier(img image.Image, index int, size image.Point) ([]float32, error)
	// Validate checks that img fits the reference/candidate layout.
	Validate(img image.Image) error
	// Candidates returns how many candidate crops img holds.
	Candidates(img image.Image) int
	// Reference returns the crop the candidates are compared against.
	Reference(img image.Image, size image.Point, gray bool) ([]float32, error)
	// Candidate returns the index-th candidate crop.
	Candidate(img image.Image, index int, size image.Point, gray bool) ([]float32, error)
}

// DefaultTile is the edge length of one challenge tile in pixels.
const DefaultTile = 200

// TilePreprocessor slices images into square tiles. Classifier images are a
// grid of tiles read row by row. Pair images carry the candidates in the top
// row and the reference in the first tile of the second row.
type TilePreprocessor struct {
	Tile   int
	Scaler draw.Scaler
}

// NewTilePreprocessor returns a preprocessor with 200px tiles and bilinear scaling.
func NewTilePreprocessor() *TilePreprocessor {
	return &TilePreprocessor{Tile: DefaultTile, Scaler: draw.BiLinear}
}

func (p *TilePreprocessor) tile() int {
	if p.Tile <= 0 {
		return DefaultTile
	}
	return p.Tile
}

func (p *TilePreprocessor) Classifier(img image.Image, index int, size image.Point) ([]float32, error) {
	t := p.tile()
	b := img.Bounds()
	cols := b.Dx() / t
	if cols == 0 || index < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageSize, b.Dx(), b.Dy())
	}
	r := image.Rect(0, 0, t, t).Add(b.Min).Add(image.Pt(index%cols*t, index/cols*t))
	if !r.In(b) {
		return nil, fmt.Errorf("%w: tile %d outside %dx%d", ErrImageSize, index, b.Dx(), b.Dy())
	}
	return p.tensor(img, r, size, false), nil
}

func (p *TilePreprocessor) Validate(img image.Image) error {
	t := p.tile()
	b := img.Bounds()
	if b.Dx() < t || b.Dy() < 2*t {
		return fmt.Errorf("%w: %dx%d, want at least %dx%d", ErrImageSize, b.Dx(), b.Dy(), t, 2*t)
	}
	return nil
}

func (p *TilePreprocessor) Candidates(img image.Image) int {
	return img.Bounds().Dx() / p.tile()
}

func (p *TilePreprocessor) Reference(img image.Image, size image.Point, gray bool) ([]float32, error) {
	if err := p.Validate(img); err != nil {
		return nil, err
	}
	t := p.tile()
	r := image.Rect(0, t, t, 2*t).Add(img.Bounds().Min)
	return p.tensor(img, r, size, gray), nil
}

func (p *TilePreprocessor) Candidate(img image.Image, index int, size image.Point, gray bool) ([]float32, error) {
	t := p.tile()
	b := img.Bounds()
	r := image.Rect(index*t, 0, (index+1)*t, t).Add(b.Min)
	if index < 0 || !r.In(b) {
		return nil, fmt.Errorf("%w: candidate %d outside %dx%d", ErrImageSize, index, b.Dx(), b.Dy())
	}
	return p.tensor(img, r, size, gray), nil
}

// tensor scales the src region of img to size and lays it out as CHW float32.
func (p *TilePreprocessor) tensor(img image.Image, src image.Rectangle, size image.Point, gray bool) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	scaler := p.Scaler
	if scaler == nil {
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	plane := size.X * size.Y
	out := make([]float32, 3*plane)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			o := dst.PixOffset(x, y)
			r := float32(dst.Pix[o]) / 255
			g := float32(dst.Pix[o+1]) / 255
			bl := float32(dst.Pix[o+2]) / 255
			if gray {
				l := 0.299*r + 0.587*g + 0.114*bl
				r, g, bl = l, l, l
			}
			i := y*size.X + x
			out[i] = r
			out[plane+i] = g
			out[2*plane+i] = bl
		}
	}
	return out
}
