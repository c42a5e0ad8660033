package models

import (
	"fmt"
	"image"
	"image/color"
)

// FrameBatch is an ordered, indexable sequence of frames
type FrameBatch interface {
	Len() int
	Slice(start, end int) FrameBatch
}

// Tensor is a dense float32 array whose first dimension is the batch size.
// Image tensors are laid out [B, H, W, C] with values in [0, 1]; latent
// tensors are [B, C, H, W].
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zeroed tensor of the given shape
func NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
	}
}

// Len returns the batch size
func (t *Tensor) Len() int {
	if t == nil || len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Validate checks that the shape has a batch dimension, no dimension is
// negative and Data holds exactly as many values as the shape describes.
func (t *Tensor) Validate() error {
	if len(t.Shape) == 0 {
		return fmt.Errorf("tensor has no shape")
	}
	n := 1
	for i, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("tensor dimension %d is negative (%d)", i, d)
		}
		n *= d
	}
	if len(t.Data) != n {
		return fmt.Errorf("tensor shape %v needs %d values, has %d", t.Shape, n, len(t.Data))
	}
	return nil
}

// FrameSize returns the number of values in one frame
func (t *Tensor) FrameSize() int {
	n := 1
	for _, d := range t.Shape[1:] {
		n *= d
	}
	return n
}

// Slice returns a view of frames [start, end). The view shares Data.
func (t *Tensor) Slice(start, end int) FrameBatch {
	return t.View(start, end)
}

// View is Slice with a concrete return type
func (t *Tensor) View(start, end int) *Tensor {
	if start < 0 || end > t.Len() || start > end {
		panic(fmt.Sprintf("tensor slice [%d:%d] out of range for batch of %d", start, end, t.Len()))
	}
	shape := append([]int(nil), t.Shape...)
	shape[0] = end - start
	size := t.FrameSize()
	return &Tensor{
		Shape: shape,
		Data:  t.Data[start*size : end*size : end*size],
	}
}

// Dims returns height, width and channel count of an image tensor
func (t *Tensor) Dims() (h, w, c int, err error) {
	if len(t.Shape) != 4 {
		return 0, 0, 0, fmt.Errorf("image tensor must have 4 dimensions, got %d", len(t.Shape))
	}
	h, w, c = t.Shape[1], t.Shape[2], t.Shape[3]
	if c != 1 && c != 3 && c != 4 {
		return 0, 0, 0, fmt.Errorf("unsupported channel count %d", c)
	}
	return h, w, c, nil
}

// Frame converts frame i of an image tensor to an 8-bit RGBA image
func (t *Tensor) Frame(i int) (*image.RGBA, error) {
	h, w, c, err := t.Dims()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= t.Len() {
		return nil, fmt.Errorf("frame %d out of range for batch of %d", i, t.Len())
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	base := i * t.FrameSize()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := t.Data[base+(y*w+x)*c:]
			var r, g, b, a uint8 = 0, 0, 0, 255
			switch c {
			case 1:
				r = toByte(px[0])
				g, b = r, r
			case 3:
				r, g, b = toByte(px[0]), toByte(px[1]), toByte(px[2])
			case 4:
				r, g, b, a = toByte(px[0]), toByte(px[1]), toByte(px[2]), toByte(px[3])
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: a})
		}
	}
	return img, nil
}

// SetFrame writes img into frame i of a 3-channel image tensor
func (t *Tensor) SetFrame(i int, img image.Image) error {
	h, w, c, err := t.Dims()
	if err != nil {
		return err
	}
	if c != 3 {
		return fmt.Errorf("SetFrame needs a 3-channel tensor, got %d", c)
	}
	bounds := img.Bounds()
	if bounds.Dx() != w || bounds.Dy() != h {
		return fmt.Errorf("frame %d is %dx%d, batch is %dx%d", i, bounds.Dx(), bounds.Dy(), w, h)
	}

	base := i * t.FrameSize()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			off := base + (y*w+x)*3
			t.Data[off] = float32(r) / 0xffff
			t.Data[off+1] = float32(g) / 0xffff
			t.Data[off+2] = float32(b) / 0xffff
		}
	}
	return nil
}

func toByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
