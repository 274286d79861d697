package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/your-org/eventface/internal/models"
)

// decodeImage accepts JPEG, PNG and WebP, which covers what phones upload.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: empty bounds")
	}
	return img, nil
}

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	w, h := targetW, targetH
	plane := h * w
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			idx := y*w + x
			data[0*plane+idx] = (float32(px[0]) - mean[0]) / std[0] // R
			data[1*plane+idx] = (float32(px[1]) - mean[1]) / std[1] // G
			data[2*plane+idx] = (float32(px[2]) - mean[2]) / std[2] // B
		}
	}

	return data
}

// resizeImage scales img to exactly targetW x targetH with bilinear filtering.
func resizeImage(img image.Image, targetW, targetH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// cropFace extracts the face region with 10% padding on each side, clamped
// to the image. Returns nil when the box does not overlap the image.
func cropFace(img image.Image, box models.BoundingBox) image.Image {
	bounds := img.Bounds()
	x1 := int(box.X)
	y1 := int(box.Y)
	x2 := int(box.X + box.Width)
	y2 := int(box.Y + box.Height)

	padW := int(float32(x2-x1) * 0.1)
	padH := int(float32(y2-y1) * 0.1)
	r := image.Rect(x1-padW, y1-padH, x2+padW, y2+padH).Add(bounds.Min).Intersect(bounds)
	if r.Empty() {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return crop
}

// boxFromCorners converts detector x1,y1,x2,y2 output into a BoundingBox.
func boxFromCorners(c [4]float32) models.BoundingBox {
	return models.BoundingBox{X: c[0], Y: c[1], Width: c[2] - c[0], Height: c[3] - c[1]}
}
